package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PayoutStatus represents the settlement state of a tutor payout.
type PayoutStatus string

const (
	PayoutStatusPending PayoutStatus = "PENDING"
	PayoutStatusPaid    PayoutStatus = "PAID"
)

// CommissionRateBasisPoints is the fraction of billed amounts paid to the
// tutor; the remainder is retained by the academy.
const CommissionRateBasisPoints = 7500

// Payout accumulates one tutor's earnings for one billing period. The unique
// index on (tutor_id, period_start) backs the accrual conflict discipline.
// TotalEarningCents only grows within a period; PayoutAmountCents is always
// recomputed from it, never incremented.
type Payout struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	TutorID           snowflake.ID `gorm:"not null;index;uniqueIndex:ux_payouts_tutor_period,priority:1" json:"tutor_id"`
	PeriodStart       time.Time    `gorm:"not null;uniqueIndex:ux_payouts_tutor_period,priority:2" json:"period_start"`
	PeriodEnd         time.Time    `gorm:"not null" json:"period_end"`
	InvoiceID         snowflake.ID `gorm:"not null;index" json:"invoice_id"`
	TotalEarningCents int64        `gorm:"not null" json:"total_earning_cents"`
	PayoutAmountCents int64        `gorm:"not null" json:"payout_amount_cents"`
	Status            PayoutStatus `gorm:"type:text;not null;default:'PENDING';index" json:"status"`
	TaxID             string       `gorm:"type:text;not null" json:"tax_id"`
	PayoutDate        time.Time    `gorm:"not null" json:"payout_date"`
	PaidAt            *time.Time   `gorm:"column:paid_at" json:"paid_at,omitempty"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Payout) TableName() string { return "payouts" }

// PayoutFor recomputes the tutor's share from cumulative earnings, rounding
// half up. A pure function of the stored total, so accrual order cannot
// introduce drift.
func PayoutFor(totalEarningCents int64) int64 {
	if totalEarningCents <= 0 {
		return 0
	}
	return (totalEarningCents*CommissionRateBasisPoints + 5000) / 10000
}
