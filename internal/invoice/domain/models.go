package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// InvoiceStatus represents the collection state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// TaxRateBasisPoints is the SST rate applied to every invoice subtotal.
const TaxRateBasisPoints = 600

// Invoice is the monthly bill for one student. At most one invoice exists per
// (student, period); the unique index backs the reconcile conflict discipline.
type Invoice struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	InvoiceNumber string            `gorm:"type:text;not null;uniqueIndex:ux_invoices_number" json:"invoice_number"`
	StudentID     snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_invoices_student_period,priority:1" json:"student_id"`
	ParentID      snowflake.ID      `gorm:"not null;index" json:"parent_id"`
	PeriodStart   time.Time         `gorm:"not null;uniqueIndex:ux_invoices_student_period,priority:2" json:"period_start"`
	PeriodEnd     time.Time         `gorm:"not null" json:"period_end"`
	SubtotalCents int64             `gorm:"not null" json:"subtotal_cents"`
	TaxCents      int64             `gorm:"not null" json:"tax_cents"`
	TotalCents    int64             `gorm:"not null" json:"total_cents"`
	Currency      string            `gorm:"type:text;not null" json:"currency"`
	Status        InvoiceStatus     `gorm:"type:text;not null;default:'PENDING';index" json:"status"`
	PaidAt        *time.Time        `gorm:"column:paid_at" json:"paid_at,omitempty"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceLineItem is one billed lesson on an invoice. Immutable once written.
// The unique lesson index makes resubmitting the same lesson a no-op.
type InvoiceLineItem struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceID       snowflake.ID `gorm:"not null;index" json:"invoice_id"`
	LessonID        snowflake.ID `gorm:"not null;uniqueIndex:ux_invoice_line_items_lesson" json:"lesson_id"`
	TutorID         snowflake.ID `gorm:"not null;index" json:"tutor_id"`
	Subject         string       `gorm:"type:text;not null" json:"subject"`
	DurationMinutes int          `gorm:"not null" json:"duration_minutes"`
	HourlyRateCents int64        `gorm:"not null" json:"hourly_rate_cents"`
	AmountCents     int64        `gorm:"not null" json:"amount_cents"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceLineItem) TableName() string { return "invoice_line_items" }

// TaxFor recomputes SST from a subtotal, rounding half up. Tax is always a
// pure function of the current subtotal so repeated reconciles cannot
// accumulate rounding drift.
func TaxFor(subtotalCents int64) int64 {
	if subtotalCents <= 0 {
		return 0
	}
	return (subtotalCents*TaxRateBasisPoints + 5000) / 10000
}
