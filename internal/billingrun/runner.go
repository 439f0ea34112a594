package billingrun

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tutorbase/tutorbase/internal/billingperiod"
	"github.com/tutorbase/tutorbase/internal/clock"
	"github.com/tutorbase/tutorbase/internal/config"
	"github.com/tutorbase/tutorbase/internal/events"
	invoicedomain "github.com/tutorbase/tutorbase/internal/invoice/domain"
	ledgerdomain "github.com/tutorbase/tutorbase/internal/ledger/domain"
	lessondomain "github.com/tutorbase/tutorbase/internal/lesson/domain"
	"github.com/tutorbase/tutorbase/internal/observability/metrics"
	payoutdomain "github.com/tutorbase/tutorbase/internal/payout/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidStudent    = errors.New("invalid_student")
	ErrStudentNotFound   = errors.New("student_not_found")
	ErrNoBillableLessons = errors.New("no_billable_lessons")
)

type RunnerParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	InvoiceSvc invoicedomain.Service
	PayoutSvc  payoutdomain.Service
	LedgerSvc  ledgerdomain.Service
	Outbox     *events.Outbox
	Metrics    *metrics.BillingMetrics `optional:"true"`
}

// Runner turns a student's completed lessons into an invoice and tutor payout
// accruals for the current billing period.
type Runner struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	currency   string
	invoiceSvc invoicedomain.Service
	payoutSvc  payoutdomain.Service
	ledgerSvc  ledgerdomain.Service
	outbox     *events.Outbox
	metrics    *metrics.BillingMetrics
}

// RunResult reports one student's billing run.
type RunResult struct {
	StudentID      snowflake.ID                 `json:"student_id"`
	InvoiceID      snowflake.ID                 `json:"invoice_id"`
	InvoiceCreated bool                         `json:"invoice_created"`
	AppliedLines   int                          `json:"applied_lines"`
	SubtotalCents  int64                        `json:"subtotal_cents"`
	TotalCents     int64                        `json:"total_cents"`
	Accruals       []payoutdomain.AccrualResult `json:"accruals"`
	FailedAccruals int                          `json:"failed_accruals"`
}

func NewRunner(p RunnerParam) *Runner {
	currency := p.Cfg.Currency
	if currency == "" {
		currency = "MYR"
	}
	return &Runner{
		db:  p.DB,
		log: p.Log.Named("billingrun"),

		genID:      p.GenID,
		clock:      p.Clock,
		currency:   currency,
		invoiceSvc: p.InvoiceSvc,
		payoutSvc:  p.PayoutSvc,
		ledgerSvc:  p.LedgerSvc,
		outbox:     p.Outbox,
		metrics:    p.Metrics,
	}
}

type studentRow struct {
	ID       snowflake.ID
	ParentID snowflake.ID
}

type billableLessonRow struct {
	ID              snowflake.ID
	TutorID         snowflake.ID
	Subject         string
	DurationMinutes int
	HourlyRateCents int64
}

// RunForStudent bills every COMPLETED lesson of the student into the current
// period's invoice, accrues tutor payouts, posts the balanced ledger entry and
// publishes outbox events. A lesson turns BILLED inside the transaction that
// accrues its tutor's payout, so a failed group leaves its lessons COMPLETED
// and a later run picks them up again; the invoice's lesson-level unique index
// keeps the retry from double-counting line items.
func (r *Runner) RunForStudent(ctx context.Context, studentID snowflake.ID) (RunResult, error) {
	started := time.Now()
	result, err := r.runForStudent(ctx, studentID)
	if r.metrics != nil {
		r.metrics.ObserveRun(time.Since(started), err == nil, result.FailedAccruals)
	}
	return result, err
}

func (r *Runner) runForStudent(ctx context.Context, studentID snowflake.ID) (RunResult, error) {
	if studentID == 0 {
		return RunResult{}, ErrInvalidStudent
	}

	student, err := r.loadStudent(ctx, studentID)
	if err != nil {
		return RunResult{}, err
	}
	if student == nil {
		return RunResult{}, ErrStudentNotFound
	}

	lessons, err := r.loadBillableLessons(ctx, studentID)
	if err != nil {
		return RunResult{}, err
	}
	if len(lessons) == 0 {
		return RunResult{}, ErrNoBillableLessons
	}

	lines := make([]invoicedomain.BillingLine, 0, len(lessons))
	for _, lesson := range lessons {
		lines = append(lines, invoicedomain.BillingLine{
			LessonID:        lesson.ID,
			TutorID:         lesson.TutorID,
			Subject:         lesson.Subject,
			DurationMinutes: lesson.DurationMinutes,
			HourlyRateCents: lesson.HourlyRateCents,
			AmountCents:     lessonAmountCents(lesson.HourlyRateCents, lesson.DurationMinutes),
		})
	}

	period := billingperiod.Resolve(r.clock.Now(), r.clock.Location())
	reconciled, err := r.invoiceSvc.Reconcile(ctx, invoicedomain.ReconcileRequest{
		StudentID:     student.ID,
		ParentID:      student.ParentID,
		InvoiceNumber: fmt.Sprintf("INV-%s-%s", period.Key(), r.genID.Generate()),
		Lines:         lines,
	})
	if err != nil {
		return RunResult{}, err
	}

	result := RunResult{
		StudentID:      student.ID,
		InvoiceID:      reconciled.Invoice.ID,
		InvoiceCreated: reconciled.Created,
		AppliedLines:   len(reconciled.AppliedLines),
		SubtotalCents:  reconciled.Invoice.SubtotalCents,
		TotalCents:     reconciled.Invoice.TotalCents,
	}

	// Accrue from every loaded lesson, not just the lines the invoice
	// absorbed this run: a lesson that is invoiced but still COMPLETED is one
	// whose accrual failed earlier, and this is its retry.
	accruals, err := r.payoutSvc.Accrue(ctx, reconciled.Invoice.ID, lines)
	if err != nil {
		return result, err
	}
	result.Accruals = accruals
	for _, accrual := range accruals {
		if accrual.Err != nil {
			result.FailedAccruals++
		}
	}

	if err := r.postLedgerEntry(ctx, reconciled, accruals); err != nil {
		// Ledger is derived bookkeeping; the billing facts are already
		// committed, so report but do not fail the run.
		r.log.Warn("ledger posting failed",
			zap.String("invoice_id", reconciled.Invoice.ID.String()),
			zap.Error(err),
		)
	}
	r.publishEvents(ctx, student.ID, period, reconciled, accruals)

	return result, nil
}

// ListBillableStudents returns students that currently have completed,
// unbilled lessons.
func (r *Runner) ListBillableStudents(ctx context.Context, limit int) ([]snowflake.ID, error) {
	if limit <= 0 {
		limit = 25
	}
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).Raw(
		`SELECT DISTINCT student_id
		 FROM lessons
		 WHERE status = ?
		 ORDER BY student_id
		 LIMIT ?`,
		lessondomain.LessonStatusCompleted,
		limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Runner) loadStudent(ctx context.Context, studentID snowflake.ID) (*studentRow, error) {
	var row studentRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, parent_id FROM students WHERE id = ?`,
		studentID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *Runner) loadBillableLessons(ctx context.Context, studentID snowflake.ID) ([]billableLessonRow, error) {
	var rows []billableLessonRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, tutor_id, subject, duration_minutes, hourly_rate_cents
		 FROM lessons
		 WHERE student_id = ? AND status = ?
		 ORDER BY completed_at ASC, id ASC`,
		studentID,
		lessondomain.LessonStatusCompleted,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// postLedgerEntry records the run's increment: receivable grows by the applied
// subtotal plus the tax delta; the credit side splits into what the payout
// rows actually moved by, the academy's commission, and SST payable. On an
// accrual retry nothing new hits the invoice, so the entry reclassifies the
// recovered amount out of commission into tutor payable (a negative commission
// share posts as a debit).
func (r *Runner) postLedgerEntry(ctx context.Context, reconciled invoicedomain.ReconcileResponse, accruals []payoutdomain.AccrualResult) error {
	var appliedSubtotal int64
	for _, line := range reconciled.AppliedLines {
		appliedSubtotal += line.AmountCents
	}

	previousSubtotal := reconciled.Invoice.SubtotalCents - appliedSubtotal
	taxDelta := reconciled.Invoice.TaxCents - invoicedomain.TaxFor(previousSubtotal)

	var payable int64
	for _, accrual := range accruals {
		if accrual.Err != nil {
			continue
		}
		payable += accrual.PayoutDeltaCents
	}
	// A failed group's share parks in commission until its retry accrues it,
	// at which point applied is zero and commission goes negative by the
	// recovered payable.
	commission := appliedSubtotal - payable

	if appliedSubtotal == 0 && payable == 0 {
		return nil
	}

	receivableID, err := r.ledgerSvc.EnsureAccount(ctx, ledgerdomain.AccountCodeAccountsReceivable, "Accounts Receivable")
	if err != nil {
		return err
	}
	payableID, err := r.ledgerSvc.EnsureAccount(ctx, ledgerdomain.AccountCodeTutorPayable, "Tutor Payable")
	if err != nil {
		return err
	}
	commissionID, err := r.ledgerSvc.EnsureAccount(ctx, ledgerdomain.AccountCodeCommissionRevenue, "Commission Revenue")
	if err != nil {
		return err
	}
	taxID, err := r.ledgerSvc.EnsureAccount(ctx, ledgerdomain.AccountCodeTaxPayable, "SST Payable")
	if err != nil {
		return err
	}

	lines := make([]ledgerdomain.LedgerEntryLine, 0, 4)
	addLine := func(accountID snowflake.ID, direction ledgerdomain.LedgerEntryDirection, amount int64) {
		if amount == 0 {
			return
		}
		if amount < 0 {
			amount = -amount
			if direction == ledgerdomain.LedgerEntryDirectionDebit {
				direction = ledgerdomain.LedgerEntryDirectionCredit
			} else {
				direction = ledgerdomain.LedgerEntryDirectionDebit
			}
		}
		lines = append(lines, ledgerdomain.LedgerEntryLine{AccountID: accountID, Direction: direction, Amount: amount})
	}
	addLine(receivableID, ledgerdomain.LedgerEntryDirectionDebit, appliedSubtotal+taxDelta)
	addLine(payableID, ledgerdomain.LedgerEntryDirectionCredit, payable)
	addLine(commissionID, ledgerdomain.LedgerEntryDirectionCredit, commission)
	addLine(taxID, ledgerdomain.LedgerEntryDirectionCredit, taxDelta)
	if len(lines) < 2 {
		return nil
	}

	return r.ledgerSvc.CreateEntry(
		ctx,
		ledgerdomain.SourceTypeBillingRun,
		reconciled.Invoice.ID,
		r.currency,
		time.Now().UTC(),
		lines,
	)
}

func (r *Runner) publishEvents(ctx context.Context, studentID snowflake.ID, period billingperiod.Period, reconciled invoicedomain.ReconcileResponse, accruals []payoutdomain.AccrualResult) {
	if r.outbox == nil {
		return
	}

	invoicePayload := events.InvoiceReconciledPayload{
		InvoiceID:     reconciled.Invoice.ID.String(),
		StudentID:     studentID.String(),
		PeriodKey:     period.Key(),
		SubtotalCents: reconciled.Invoice.SubtotalCents,
		TotalCents:    reconciled.Invoice.TotalCents,
		AppliedLines:  len(reconciled.AppliedLines),
	}
	if err := r.outbox.Publish(ctx, events.Event{
		Type:      events.EventInvoiceReconciled,
		Payload:   invoicePayload.ToMap(),
		DedupeKey: fmt.Sprintf("%s:%s:%d", events.EventInvoiceReconciled, reconciled.Invoice.ID, reconciled.Invoice.SubtotalCents),
	}); err != nil {
		r.log.Warn("outbox publish failed", zap.String("event", events.EventInvoiceReconciled), zap.Error(err))
	}

	for _, accrual := range accruals {
		if accrual.Err != nil || accrual.Payout == nil {
			continue
		}
		payload := events.PayoutAccruedPayload{
			PayoutID:          accrual.Payout.ID.String(),
			TutorID:           accrual.TutorID.String(),
			InvoiceID:         reconciled.Invoice.ID.String(),
			PeriodKey:         period.Key(),
			TotalEarningCents: accrual.Payout.TotalEarningCents,
			PayoutAmountCents: accrual.Payout.PayoutAmountCents,
		}
		if err := r.outbox.Publish(ctx, events.Event{
			Type:      events.EventPayoutAccrued,
			Payload:   payload.ToMap(),
			DedupeKey: fmt.Sprintf("%s:%s:%d", events.EventPayoutAccrued, accrual.Payout.ID, accrual.Payout.TotalEarningCents),
		}); err != nil {
			r.log.Warn("outbox publish failed", zap.String("event", events.EventPayoutAccrued), zap.Error(err))
		}
	}
}

// lessonAmountCents prices a lesson from its snapshotted hourly rate, rounding
// half up to the nearest cent.
func lessonAmountCents(hourlyRateCents int64, durationMinutes int) int64 {
	if hourlyRateCents <= 0 || durationMinutes <= 0 {
		return 0
	}
	return (hourlyRateCents*int64(durationMinutes) + 30) / 60
}
