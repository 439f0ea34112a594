package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tutorbase/tutorbase/internal/billingperiod"
	"github.com/tutorbase/tutorbase/internal/clock"
	invoicedomain "github.com/tutorbase/tutorbase/internal/invoice/domain"
	lessondomain "github.com/tutorbase/tutorbase/internal/lesson/domain"
	payoutdomain "github.com/tutorbase/tutorbase/internal/payout/domain"
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
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p ServiceParam) payoutdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("payout.service"),

		genID: p.GenID,
		clock: p.Clock,
	}
}

type tutorGroup struct {
	tutorID snowflake.ID
	lines   []invoicedomain.BillingLine
}

// Accrue fans out per tutor group. Each group commits in its own transaction;
// one group's failure is recorded in its result and does not roll back the
// others. The transaction claims the group's lessons (COMPLETED -> BILLED)
// before moving the payout, so resubmitting the same lines is a no-op for
// lessons that already accrued and a failed group's lessons stay claimable.
func (s *Service) Accrue(ctx context.Context, invoiceID snowflake.ID, lines []invoicedomain.BillingLine) ([]payoutdomain.AccrualResult, error) {
	if invoiceID == 0 {
		return nil, payoutdomain.ErrInvalidInvoice
	}
	if len(lines) == 0 {
		return nil, payoutdomain.ErrEmptyLineItems
	}
	for _, line := range lines {
		if line.TutorID == 0 {
			return nil, payoutdomain.ErrInvalidTutor
		}
		if line.AmountCents < 0 {
			return nil, payoutdomain.ErrInvalidAmount
		}
	}

	groups := groupByTutor(lines)
	period := billingperiod.Resolve(s.clock.Now(), s.clock.Location())

	results := make([]payoutdomain.AccrualResult, 0, len(groups))
	for _, group := range groups {
		result := payoutdomain.AccrualResult{TutorID: group.tutorID}

		accrued, err := s.accrueGroup(ctx, invoiceID, group, period)
		if err != nil {
			result.Err = err
			result.ErrorMessage = err.Error()
			s.log.Warn("payout accrual failed",
				zap.String("tutor_id", group.tutorID.String()),
				zap.String("invoice_id", invoiceID.String()),
				zap.Error(err),
			)
		} else {
			result.EarnedCents = accrued.earned
			result.PayoutDeltaCents = accrued.payoutDelta
			result.Payout = accrued.payout
		}
		results = append(results, result)
	}
	return results, nil
}

type groupAccrual struct {
	earned      int64
	payoutDelta int64
	payout      *payoutdomain.Payout
}

func (s *Service) accrueGroup(ctx context.Context, invoiceID snowflake.ID, group tutorGroup, period billingperiod.Period) (groupAccrual, error) {
	periodStart := period.Start.UTC()
	periodEnd := period.End.UTC()
	now := time.Now().UTC()

	var accrued groupAccrual
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accrued = groupAccrual{}

		earned, claimed, err := s.claimLessons(ctx, tx, invoiceID, group.lines, now)
		if err != nil {
			return err
		}
		if claimed == 0 {
			// Every lesson in the group already accrued on an earlier run.
			return nil
		}
		accrued.earned = earned
		if earned == 0 {
			// Zero-amount lessons are claimed so they stop resweeping, but
			// there is nothing to move on the payout row.
			return nil
		}

		existing, err := s.findForPeriod(ctx, tx, group.tutorID, periodStart)
		if err != nil {
			return err
		}

		if existing == nil {
			res := tx.WithContext(ctx).Exec(
				`INSERT INTO payouts (
					id, tutor_id, period_start, period_end, invoice_id,
					total_earning_cents, payout_amount_cents, status, tax_id,
					payout_date, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (tutor_id, period_start) DO NOTHING`,
				s.genID.Generate(),
				group.tutorID,
				periodStart,
				periodEnd,
				invoiceID,
				earned,
				payoutdomain.PayoutFor(earned),
				payoutdomain.PayoutStatusPending,
				newTaxID(),
				s.clock.Now().UTC(),
				now,
				now,
			)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				accrued.payout, err = s.findForPeriod(ctx, tx, group.tutorID, periodStart)
				if err != nil {
					return err
				}
				if accrued.payout == nil {
					return errors.New("payout_upsert_unresolved")
				}
				accrued.payoutDelta = accrued.payout.PayoutAmountCents
				return nil
			}

			// Lost the create race; accrue onto the winner's row instead.
			existing, err = s.findForPeriod(ctx, tx, group.tutorID, periodStart)
			if err != nil {
				return err
			}
			if existing == nil {
				return errors.New("payout_upsert_unresolved")
			}
		}

		// Relative update: the increment takes the row lock, so concurrent
		// accruals serialize instead of overwriting each other's totals.
		if err := tx.WithContext(ctx).Exec(
			`UPDATE payouts
			 SET total_earning_cents = total_earning_cents + ?, invoice_id = ?, updated_at = ?
			 WHERE id = ?`,
			earned,
			invoiceID,
			now,
			existing.ID,
		).Error; err != nil {
			return err
		}

		current, err := s.findForPeriod(ctx, tx, group.tutorID, periodStart)
		if err != nil {
			return err
		}
		if current == nil {
			return errors.New("payout_upsert_unresolved")
		}

		amount := payoutdomain.PayoutFor(current.TotalEarningCents)
		if err := tx.WithContext(ctx).Exec(
			`UPDATE payouts SET payout_amount_cents = ? WHERE id = ?`,
			amount,
			current.ID,
		).Error; err != nil {
			return err
		}

		current.PayoutAmountCents = amount
		accrued.payout = current
		accrued.payoutDelta = amount - payoutdomain.PayoutFor(current.TotalEarningCents-earned)
		return nil
	})
	if err != nil {
		return groupAccrual{}, err
	}
	return accrued, nil
}

// claimLessons flips the group's lessons COMPLETED -> BILLED inside the
// accrual transaction. The status guard makes each lesson accrue exactly once:
// a lesson another run already billed counts zero here, and a rollback releases
// the claim together with the payout change.
func (s *Service) claimLessons(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID, lines []invoicedomain.BillingLine, now time.Time) (int64, int, error) {
	var earned int64
	var claimed int
	for _, line := range lines {
		res := tx.WithContext(ctx).Exec(
			`UPDATE lessons
			 SET status = ?, invoice_id = ?, updated_at = ?
			 WHERE id = ? AND status = ?`,
			lessondomain.LessonStatusBilled,
			invoiceID,
			now,
			line.LessonID,
			lessondomain.LessonStatusCompleted,
		)
		if res.Error != nil {
			return 0, 0, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		claimed++
		earned += line.AmountCents
	}
	return earned, claimed, nil
}

func (s *Service) CurrentPeriod(ctx context.Context) ([]payoutdomain.Payout, error) {
	period := billingperiod.Resolve(s.clock.Now(), s.clock.Location())

	var payouts []payoutdomain.Payout
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, tutor_id, period_start, period_end, invoice_id,
		        total_earning_cents, payout_amount_cents, status, tax_id,
		        payout_date, paid_at, created_at, updated_at
		 FROM payouts
		 WHERE period_start = ?
		 ORDER BY total_earning_cents DESC, id ASC`,
		period.Start.UTC(),
	).Scan(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*payoutdomain.Payout, error) {
	payoutID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || payoutID == 0 {
		return nil, payoutdomain.ErrInvalidPayoutID
	}

	var payout payoutdomain.Payout
	err = s.db.WithContext(ctx).Raw(
		`SELECT id, tutor_id, period_start, period_end, invoice_id,
		        total_earning_cents, payout_amount_cents, status, tax_id,
		        payout_date, paid_at, created_at, updated_at
		 FROM payouts
		 WHERE id = ?`,
		payoutID,
	).Scan(&payout).Error
	if err != nil {
		return nil, err
	}
	if payout.ID == 0 {
		return nil, payoutdomain.ErrPayoutNotFound
	}
	return &payout, nil
}

func (s *Service) MarkPaid(ctx context.Context, payoutID string) (*payoutdomain.Payout, error) {
	payout, err := s.GetByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if payout.Status != payoutdomain.PayoutStatusPending {
		return nil, payoutdomain.ErrPayoutNotPending
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Exec(
		`UPDATE payouts SET status = ?, paid_at = ?, updated_at = ? WHERE id = ?`,
		payoutdomain.PayoutStatusPaid,
		now,
		now,
		payout.ID,
	).Error; err != nil {
		return nil, err
	}

	payout.Status = payoutdomain.PayoutStatusPaid
	payout.PaidAt = &now
	payout.UpdatedAt = now
	return payout, nil
}

func (s *Service) findForPeriod(ctx context.Context, tx *gorm.DB, tutorID snowflake.ID, periodStart time.Time) (*payoutdomain.Payout, error) {
	var payout payoutdomain.Payout
	err := tx.WithContext(ctx).Raw(
		`SELECT id, tutor_id, period_start, period_end, invoice_id,
		        total_earning_cents, payout_amount_cents, status, tax_id,
		        payout_date, paid_at, created_at, updated_at
		 FROM payouts
		 WHERE tutor_id = ? AND period_start = ?`,
		tutorID,
		periodStart,
	).Scan(&payout).Error
	if err != nil {
		return nil, err
	}
	if payout.ID == 0 {
		return nil, nil
	}
	return &payout, nil
}

// groupByTutor folds lines into per-tutor groups, preserving first-appearance order.
func groupByTutor(lines []invoicedomain.BillingLine) []tutorGroup {
	index := make(map[snowflake.ID]int, len(lines))
	groups := make([]tutorGroup, 0, len(lines))
	for _, line := range lines {
		if at, ok := index[line.TutorID]; ok {
			groups[at].lines = append(groups[at].lines, line)
			continue
		}
		index[line.TutorID] = len(groups)
		groups = append(groups, tutorGroup{tutorID: line.TutorID, lines: []invoicedomain.BillingLine{line}})
	}
	return groups
}

func newTaxID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "TX-000000000000"
	}
	return "TX-" + strings.ToUpper(hex.EncodeToString(buf))
}
