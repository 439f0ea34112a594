package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/tutorbase/tutorbase/internal/invoice/domain"
)

// AccrualResult reports the outcome of one tutor group's accrual. Groups are
// isolated: a failed group is tagged with Err while other groups commit.
// EarnedCents is the amount actually claimed this accrual; PayoutDeltaCents is
// how much the payout row's amount moved, which can differ from 75% of
// EarnedCents by a rounding cent because the payout is recomputed from the
// cumulative total.
type AccrualResult struct {
	TutorID          snowflake.ID `json:"tutor_id"`
	EarnedCents      int64        `json:"earned_cents"`
	PayoutDeltaCents int64        `json:"payout_delta_cents"`
	Payout           *Payout      `json:"payout,omitempty"`
	Err              error        `json:"-"`
	ErrorMessage     string       `json:"error,omitempty"`
}

type Service interface {
	// Accrue groups billing lines by tutor and merges each group into the
	// tutor's payout for the current period. Group order follows first
	// appearance in lines. Each group's transaction claims its lessons by
	// flipping them COMPLETED -> BILLED before touching the payout row, so a
	// lesson accrues at most once and a failed group leaves its lessons
	// claimable by the next run.
	Accrue(ctx context.Context, invoiceID snowflake.ID, lines []invoicedomain.BillingLine) ([]AccrualResult, error)
	// CurrentPeriod returns all payouts bucketed into the current period.
	CurrentPeriod(ctx context.Context) ([]Payout, error)
	GetByID(ctx context.Context, id string) (*Payout, error)
	MarkPaid(ctx context.Context, payoutID string) (*Payout, error)
}

var (
	ErrEmptyLineItems   = errors.New("empty_line_items")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidInvoice   = errors.New("invalid_invoice")
	ErrInvalidTutor     = errors.New("invalid_tutor")
	ErrInvalidPayoutID  = errors.New("invalid_payout_id")
	ErrPayoutNotFound   = errors.New("payout_not_found")
	ErrPayoutNotPending = errors.New("payout_not_pending")
)
