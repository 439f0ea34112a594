package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tutorbase/tutorbase/internal/billingperiod"
	"github.com/tutorbase/tutorbase/internal/clock"
	"github.com/tutorbase/tutorbase/internal/config"
	invoicedomain "github.com/tutorbase/tutorbase/internal/invoice/domain"
	"github.com/tutorbase/tutorbase/pkg/db/option"
	"github.com/tutorbase/tutorbase/pkg/db/pagination"
	"github.com/tutorbase/tutorbase/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Cfg   config.Config
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	clock    clock.Clock
	currency string

	invoicerepo repository.Repository[invoicedomain.Invoice]
}

func NewService(p ServiceParam) invoicedomain.Service {
	currency := strings.TrimSpace(p.Cfg.Currency)
	if currency == "" {
		currency = "MYR"
	}
	return &Service{
		db:  p.DB,
		log: p.Log.Named("invoice.service"),

		genID:    p.GenID,
		clock:    p.Clock,
		currency: currency,

		invoicerepo: repository.ProvideStore[invoicedomain.Invoice](p.DB),
	}
}

// Reconcile upserts the invoice for (student, current period) and absorbs the
// submitted billing lines. Creation races resolve through the unique index on
// (student_id, period_start): a losing insert falls back to the update path.
func (s *Service) Reconcile(ctx context.Context, req invoicedomain.ReconcileRequest) (invoicedomain.ReconcileResponse, error) {
	if err := validateReconcile(req); err != nil {
		return invoicedomain.ReconcileResponse{}, err
	}

	exists, err := s.studentExists(ctx, req.StudentID)
	if err != nil {
		return invoicedomain.ReconcileResponse{}, err
	}
	if !exists {
		return invoicedomain.ReconcileResponse{}, invoicedomain.ErrStudentNotFound
	}

	period := billingperiod.Resolve(s.clock.Now(), s.clock.Location())
	periodStart := period.Start.UTC()
	periodEnd := period.End.UTC()
	now := time.Now().UTC()

	var resp invoicedomain.ReconcileResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.findForPeriod(ctx, tx, req.StudentID, periodStart)
		if err != nil {
			return err
		}

		if existing == nil {
			res := tx.WithContext(ctx).Exec(
				`INSERT INTO invoices (
					id, invoice_number, student_id, parent_id, period_start, period_end,
					subtotal_cents, tax_cents, total_cents, currency, status, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0, ?, ?, ?, ?)
				ON CONFLICT (student_id, period_start) DO NOTHING`,
				s.genID.Generate(),
				strings.TrimSpace(req.InvoiceNumber),
				req.StudentID,
				req.ParentID,
				periodStart,
				periodEnd,
				s.currency,
				invoicedomain.InvoiceStatusPending,
				now,
				now,
			)
			if res.Error != nil {
				return res.Error
			}
			resp.Created = res.RowsAffected > 0

			// Re-read either way: a concurrent reconcile may have won the
			// insert, in which case this call continues on the update path.
			existing, err = s.findForPeriod(ctx, tx, req.StudentID, periodStart)
			if err != nil {
				return err
			}
			if existing == nil {
				return errors.New("invoice_upsert_unresolved")
			}
		}

		applied, delta, err := s.appendLines(ctx, tx, existing.ID, req.Lines, now)
		if err != nil {
			return err
		}

		// Relative update so concurrent reconciles for the same invoice
		// serialize on the row lock instead of overwriting each other's
		// subtotal with a stale absolute value.
		if err := tx.WithContext(ctx).Exec(
			`UPDATE invoices
			 SET subtotal_cents = subtotal_cents + ?, updated_at = ?
			 WHERE id = ?`,
			delta,
			now,
			existing.ID,
		).Error; err != nil {
			return err
		}

		// Re-read under the lock: tax and total derive from whatever the
		// subtotal is now, including any concurrent increments that committed
		// before ours took the lock.
		current, err := s.findForPeriod(ctx, tx, req.StudentID, periodStart)
		if err != nil {
			return err
		}
		if current == nil {
			return errors.New("invoice_upsert_unresolved")
		}

		tax := invoicedomain.TaxFor(current.SubtotalCents)
		total := current.SubtotalCents + tax
		if err := tx.WithContext(ctx).Exec(
			`UPDATE invoices SET tax_cents = ?, total_cents = ? WHERE id = ?`,
			tax,
			total,
			current.ID,
		).Error; err != nil {
			return err
		}

		current.TaxCents = tax
		current.TotalCents = total

		resp.Invoice = *current
		resp.AppliedLines = applied
		return nil
	})
	if err != nil {
		return invoicedomain.ReconcileResponse{}, err
	}

	s.log.Info("invoice reconciled",
		zap.String("invoice_id", resp.Invoice.ID.String()),
		zap.String("student_id", req.StudentID.String()),
		zap.Bool("created", resp.Created),
		zap.Int("applied_lines", len(resp.AppliedLines)),
		zap.Int64("subtotal_cents", resp.Invoice.SubtotalCents),
	)
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, invoicedomain.ErrInvalidInvoiceID
	}
	record, err := s.invoicerepo.FindOne(ctx, &invoicedomain.Invoice{ID: invoiceID})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return record, nil
}

func (s *Service) ListLineItems(ctx context.Context, invoiceID string) ([]invoicedomain.InvoiceLineItem, error) {
	id, err := parseID(invoiceID)
	if err != nil {
		return nil, invoicedomain.ErrInvalidInvoiceID
	}

	var items []invoicedomain.InvoiceLineItem
	err = s.db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, lesson_id, tutor_id, subject, duration_minutes,
		        hourly_rate_cents, amount_cents, created_at
		 FROM invoice_line_items
		 WHERE invoice_id = ?
		 ORDER BY created_at ASC, id ASC`,
		id,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	filter := &invoicedomain.Invoice{}
	if strings.TrimSpace(req.StudentID) != "" {
		studentID, err := parseID(req.StudentID)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidStudent
		}
		filter.StudentID = studentID
	}
	if status := strings.ToUpper(strings.TrimSpace(req.Status)); status != "" {
		switch invoicedomain.InvoiceStatus(status) {
		case invoicedomain.InvoiceStatusPending,
			invoicedomain.InvoiceStatusPaid,
			invoicedomain.InvoiceStatusCancelled:
			filter.Status = invoicedomain.InvoiceStatus(status)
		default:
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidStatus
		}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.invoicerepo.Find(ctx, filter,
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  int(pageSize),
		}),
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}}),
	)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(record *invoicedomain.Invoice) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        record.ID.String(),
			CreatedAt: record.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	records := make([]invoicedomain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		records = append(records, *item)
	}

	resp := invoicedomain.ListInvoiceResponse{Invoices: records}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) MarkPaid(ctx context.Context, invoiceID string) (*invoicedomain.Invoice, error) {
	record, err := s.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if record.Status != invoicedomain.InvoiceStatusPending {
		return nil, invoicedomain.ErrInvoiceNotPending
	}

	now := time.Now().UTC()
	record.Status = invoicedomain.InvoiceStatusPaid
	record.PaidAt = &now
	record.UpdatedAt = now
	if err := s.invoicerepo.Update(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) studentExists(ctx context.Context, studentID snowflake.ID) (bool, error) {
	var id snowflake.ID
	err := s.db.WithContext(ctx).Raw(
		`SELECT id FROM students WHERE id = ?`,
		studentID,
	).Scan(&id).Error
	if err != nil {
		return false, err
	}
	return id != 0, nil
}

func (s *Service) findForPeriod(ctx context.Context, tx *gorm.DB, studentID snowflake.ID, periodStart time.Time) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := tx.WithContext(ctx).Raw(
		`SELECT id, invoice_number, student_id, parent_id, period_start, period_end,
		        subtotal_cents, tax_cents, total_cents, currency, status, paid_at,
		        created_at, updated_at
		 FROM invoices
		 WHERE student_id = ? AND period_start = ?`,
		studentID,
		periodStart,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

// appendLines inserts billing lines as invoice line items. Lines whose lesson
// is already invoiced hit the unique lesson index and are skipped; only rows
// actually inserted contribute to the returned subtotal delta.
func (s *Service) appendLines(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID, lines []invoicedomain.BillingLine, now time.Time) ([]invoicedomain.BillingLine, int64, error) {
	applied := make([]invoicedomain.BillingLine, 0, len(lines))
	var delta int64
	for _, line := range lines {
		res := tx.WithContext(ctx).Exec(
			`INSERT INTO invoice_line_items (
				id, invoice_id, lesson_id, tutor_id, subject, duration_minutes,
				hourly_rate_cents, amount_cents, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (lesson_id) DO NOTHING`,
			s.genID.Generate(),
			invoiceID,
			line.LessonID,
			line.TutorID,
			line.Subject,
			line.DurationMinutes,
			line.HourlyRateCents,
			line.AmountCents,
			now,
		)
		if res.Error != nil {
			return nil, 0, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		applied = append(applied, line)
		delta += line.AmountCents
	}
	return applied, delta, nil
}

func validateReconcile(req invoicedomain.ReconcileRequest) error {
	if len(req.Lines) == 0 {
		return invoicedomain.ErrEmptyLineItems
	}
	if req.StudentID == 0 {
		return invoicedomain.ErrInvalidStudent
	}
	if req.ParentID == 0 {
		return invoicedomain.ErrInvalidParent
	}
	if strings.TrimSpace(req.InvoiceNumber) == "" {
		return invoicedomain.ErrInvalidInvoiceNumber
	}
	for _, line := range req.Lines {
		if line.LessonID == 0 || line.TutorID == 0 {
			return invoicedomain.ErrInvalidAmount
		}
		if line.AmountCents < 0 {
			return invoicedomain.ErrInvalidAmount
		}
	}
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invoicedomain.ErrInvalidInvoiceID
	}
	return id, nil
}
