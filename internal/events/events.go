package events

// Billing event types published through the outbox.
const (
	EventInvoiceReconciled = "invoice.reconciled"
	EventInvoicePaid       = "invoice.paid"
	EventPayoutAccrued     = "payout.accrued"
	EventPayoutPaid        = "payout.paid"
	EventBillingRunFailed  = "billing_run.failed"
)

// InvoiceReconciledPayload captures the minimal data consumers need to react
// to a reconciliation.
type InvoiceReconciledPayload struct {
	InvoiceID     string `json:"invoice_id"`
	StudentID     string `json:"student_id"`
	PeriodKey     string `json:"period_key"`
	SubtotalCents int64  `json:"subtotal_cents"`
	TotalCents    int64  `json:"total_cents"`
	AppliedLines  int    `json:"applied_lines"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p InvoiceReconciledPayload) ToMap() map[string]any {
	return map[string]any{
		"invoice_id":     p.InvoiceID,
		"student_id":     p.StudentID,
		"period_key":     p.PeriodKey,
		"subtotal_cents": p.SubtotalCents,
		"total_cents":    p.TotalCents,
		"applied_lines":  p.AppliedLines,
	}
}

// InvoicePaidPayload records settlement of an invoice.
type InvoicePaidPayload struct {
	InvoiceID  string `json:"invoice_id"`
	StudentID  string `json:"student_id"`
	TotalCents int64  `json:"total_cents"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p InvoicePaidPayload) ToMap() map[string]any {
	return map[string]any{
		"invoice_id":  p.InvoiceID,
		"student_id":  p.StudentID,
		"total_cents": p.TotalCents,
	}
}

// PayoutPaidPayload records settlement of a tutor payout.
type PayoutPaidPayload struct {
	PayoutID          string `json:"payout_id"`
	TutorID           string `json:"tutor_id"`
	PayoutAmountCents int64  `json:"payout_amount_cents"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p PayoutPaidPayload) ToMap() map[string]any {
	return map[string]any{
		"payout_id":           p.PayoutID,
		"tutor_id":            p.TutorID,
		"payout_amount_cents": p.PayoutAmountCents,
	}
}

// BillingRunFailedPayload records a sweep failure for a single student.
type BillingRunFailedPayload struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p BillingRunFailedPayload) ToMap() map[string]any {
	return map[string]any{
		"student_id": p.StudentID,
		"reason":     p.Reason,
	}
}

// PayoutAccruedPayload captures one tutor's accrual outcome.
type PayoutAccruedPayload struct {
	PayoutID          string `json:"payout_id"`
	TutorID           string `json:"tutor_id"`
	InvoiceID         string `json:"invoice_id"`
	PeriodKey         string `json:"period_key"`
	TotalEarningCents int64  `json:"total_earning_cents"`
	PayoutAmountCents int64  `json:"payout_amount_cents"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p PayoutAccruedPayload) ToMap() map[string]any {
	return map[string]any{
		"payout_id":           p.PayoutID,
		"tutor_id":            p.TutorID,
		"invoice_id":          p.InvoiceID,
		"period_key":          p.PeriodKey,
		"total_earning_cents": p.TotalEarningCents,
		"payout_amount_cents": p.PayoutAmountCents,
	}
}
