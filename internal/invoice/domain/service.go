package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/tutorbase/tutorbase/pkg/db/pagination"
)

// BillingLine is one unit of billable work submitted to reconciliation.
// AmountCents is computed by the caller and trusted by the engine.
type BillingLine struct {
	LessonID        snowflake.ID `json:"lesson_id"`
	TutorID         snowflake.ID `json:"tutor_id"`
	Subject         string       `json:"subject"`
	DurationMinutes int          `json:"duration_minutes"`
	HourlyRateCents int64        `json:"hourly_rate_cents"`
	AmountCents     int64        `json:"amount_cents"`
}

type ReconcileRequest struct {
	StudentID     snowflake.ID
	ParentID      snowflake.ID
	InvoiceNumber string
	Lines         []BillingLine
}

// ReconcileResponse reports the invoice after the call and which submitted
// lines were actually absorbed. Lines whose lesson was already on an invoice
// are dropped, so retries cannot double-bill.
type ReconcileResponse struct {
	Invoice      Invoice
	AppliedLines []BillingLine
	Created      bool
}

type ListInvoiceRequest struct {
	PageToken string
	PageSize  int32
	StudentID string
	Status    string
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	// Reconcile merges billing lines into the student's invoice for the
	// current period, creating the invoice on first use.
	Reconcile(ctx context.Context, req ReconcileRequest) (ReconcileResponse, error)
	GetByID(ctx context.Context, id string) (*Invoice, error)
	ListLineItems(ctx context.Context, invoiceID string) ([]InvoiceLineItem, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	MarkPaid(ctx context.Context, invoiceID string) (*Invoice, error)
}

var (
	ErrEmptyLineItems       = errors.New("empty_line_items")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidStudent       = errors.New("invalid_student")
	ErrInvalidParent        = errors.New("invalid_parent")
	ErrInvalidInvoiceNumber = errors.New("invalid_invoice_number")
	ErrInvalidInvoiceID     = errors.New("invalid_invoice_id")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrStudentNotFound      = errors.New("student_not_found")
	ErrInvoiceNotFound      = errors.New("invoice_not_found")
	ErrInvoiceNotPending    = errors.New("invoice_not_pending")
)
