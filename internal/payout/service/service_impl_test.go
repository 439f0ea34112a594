package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tutorbase/tutorbase/internal/clock"
	invoicedomain "github.com/tutorbase/tutorbase/internal/invoice/domain"
	lessondomain "github.com/tutorbase/tutorbase/internal/lesson/domain"
	payoutdomain "github.com/tutorbase/tutorbase/internal/payout/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var accrualInstant = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func setupPayoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&payoutdomain.Payout{}, &lessondomain.Lesson{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// seedLesson inserts the COMPLETED lesson an accrual line points at; the
// accrual transaction claims it by flipping it to BILLED.
func seedLesson(t *testing.T, db *gorm.DB, lessonID, tutorID snowflake.ID) {
	t.Helper()
	completed := accrualInstant.Add(-24 * time.Hour)
	err := db.Create(&lessondomain.Lesson{
		ID:              lessonID,
		StudentID:       500,
		TutorID:         tutorID,
		Subject:         "Math",
		ScheduledAt:     completed.Add(-time.Hour),
		DurationMinutes: 60,
		HourlyRateCents: 10000,
		Status:          lessondomain.LessonStatusCompleted,
		CompletedAt:     &completed,
	}).Error
	if err != nil {
		t.Fatalf("insert lesson: %v", err)
	}
}

func lessonStatus(t *testing.T, db *gorm.DB, lessonID snowflake.ID) lessondomain.LessonStatus {
	t.Helper()
	var lesson lessondomain.Lesson
	if err := db.First(&lesson, "id = ?", lessonID).Error; err != nil {
		t.Fatalf("load lesson %d: %v", lessonID, err)
	}
	return lesson.Status
}

func newPayoutTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return &Service{
		db:  db,
		log: zap.NewNop(),

		genID: node,
		clock: clock.Fixed{Instant: accrualInstant},
	}
}

func line(lessonID, tutorID snowflake.ID, amount int64) invoicedomain.BillingLine {
	return invoicedomain.BillingLine{
		LessonID:    lessonID,
		TutorID:     tutorID,
		AmountCents: amount,
	}
}

func TestAccrueGroupsByTutor(t *testing.T) {
	db := setupPayoutTestDB(t)
	svc := newPayoutTestService(t, db)
	seedLesson(t, db, 1, 1)
	seedLesson(t, db, 2, 2)
	seedLesson(t, db, 3, 1)

	// Tutor 1: 100.00 + 50.00 = 150.00 earned, payout 112.50.
	// Tutor 2: 200.00 earned, payout 150.00.
	results, err := svc.Accrue(context.Background(), 900, []invoicedomain.BillingLine{
		line(1, 1, 10000),
		line(2, 2, 20000),
		line(3, 1, 5000),
	})
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(results))
	}

	first := results[0]
	if first.TutorID != 1 || first.EarnedCents != 15000 {
		t.Fatalf("expected tutor 1 earning 15000, got tutor %s earning %d", first.TutorID, first.EarnedCents)
	}
	if first.Err != nil {
		t.Fatalf("unexpected group error: %v", first.Err)
	}
	if first.Payout.TotalEarningCents != 15000 || first.Payout.PayoutAmountCents != 11250 {
		t.Fatalf("expected payout 15000/11250, got %d/%d", first.Payout.TotalEarningCents, first.Payout.PayoutAmountCents)
	}

	second := results[1]
	if second.TutorID != 2 || second.EarnedCents != 20000 {
		t.Fatalf("expected tutor 2 earning 20000, got tutor %s earning %d", second.TutorID, second.EarnedCents)
	}
	if second.Payout.PayoutAmountCents != 15000 {
		t.Fatalf("expected payout amount 15000, got %d", second.Payout.PayoutAmountCents)
	}
	if second.Payout.Status != payoutdomain.PayoutStatusPending {
		t.Fatalf("expected PENDING payout, got %s", second.Payout.Status)
	}

	for _, lessonID := range []snowflake.ID{1, 2, 3} {
		if status := lessonStatus(t, db, lessonID); status != lessondomain.LessonStatusBilled {
			t.Fatalf("expected lesson %d BILLED, got %s", lessonID, status)
		}
	}
}

func TestAccrueAccumulatesWithinPeriod(t *testing.T) {
	db := setupPayoutTestDB(t)
	svc := newPayoutTestService(t, db)
	seedLesson(t, db, 1, 1)
	seedLesson(t, db, 2, 1)

	first, err := svc.Accrue(context.Background(), 900, []invoicedomain.BillingLine{line(1, 1, 10000)})
	if err != nil {
		t.Fatalf("first accrue: %v", err)
	}
	if first[0].PayoutDeltaCents != payoutdomain.PayoutFor(10000) {
		t.Fatalf("expected first delta %d, got %d", payoutdomain.PayoutFor(10000), first[0].PayoutDeltaCents)
	}
	second, err := svc.Accrue(context.Background(), 901, []invoicedomain.BillingLine{line(2, 1, 3000)})
	if err != nil {
		t.Fatalf("second accrue: %v", err)
	}
	if want := payoutdomain.PayoutFor(13000) - payoutdomain.PayoutFor(10000); second[0].PayoutDeltaCents != want {
		t.Fatalf("expected second delta %d, got %d", want, second[0].PayoutDeltaCents)
	}

	if second[0].Payout.ID != first[0].Payout.ID {
		t.Fatalf("expected the same payout row across accruals")
	}
	if second[0].Payout.TotalEarningCents != 13000 {
		t.Fatalf("expected total earning 13000, got %d", second[0].Payout.TotalEarningCents)
	}
	// Payout amount is recomputed from the stored total, never incremented.
	if second[0].Payout.PayoutAmountCents != payoutdomain.PayoutFor(13000) {
		t.Fatalf("expected payout %d, got %d", payoutdomain.PayoutFor(13000), second[0].Payout.PayoutAmountCents)
	}

	var count int64
	if err := db.Model(&payoutdomain.Payout{}).Count(&count).Error; err != nil {
		t.Fatalf("count payouts: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single payout for the period, got %d", count)
	}
}

func TestAccruePayoutRoundsHalfUp(t *testing.T) {
	db := setupPayoutTestDB(t)
	svc := newPayoutTestService(t, db)
	seedLesson(t, db, 1, 1)

	// 0.02 * 75% = 0.015 -> rounds to 0.02.
	results, err := svc.Accrue(context.Background(), 900, []invoicedomain.BillingLine{line(1, 1, 2)})
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if results[0].Payout.PayoutAmountCents != 2 {
		t.Fatalf("expected payout 2, got %d", results[0].Payout.PayoutAmountCents)
	}
}

func TestAccrueIsolatesFailedGroups(t *testing.T) {
	db := setupPayoutTestDB(t)
	svc := newPayoutTestService(t, db)
	seedLesson(t, db, 1, 1)
	seedLesson(t, db, 2, 666)
	seedLesson(t, db, 3, 2)

	// Block tutor 666 at the database level so only that group fails.
	err := db.Exec(`
		CREATE TRIGGER block_tutor BEFORE INSERT ON payouts
		WHEN NEW.tutor_id = 666
		BEGIN
			SELECT RAISE(ABORT, 'tutor_blocked');
		END`).Error
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	results, err := svc.Accrue(context.Background(), 900, []invoicedomain.BillingLine{
		line(1, 1, 10000),
		line(2, 666, 20000),
		line(3, 2, 5000),
	})
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(results))
	}

	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("healthy groups must commit: %v, %v", results[0].Err, results[2].Err)
	}
	if results[1].Err == nil {
		t.Fatalf("expected the blocked group to fail")
	}
	if results[1].ErrorMessage == "" {
		t.Fatalf("expected the failed group to carry an error message")
	}
	if results[1].Payout != nil {
		t.Fatalf("failed group must not report a payout")
	}

	var count int64
	if err := db.Model(&payoutdomain.Payout{}).Count(&count).Error; err != nil {
		t.Fatalf("count payouts: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 committed payouts, got %d", count)
	}

	// The failed group's rollback releases its lesson claim.
	if status := lessonStatus(t, db, 2); status != lessondomain.LessonStatusCompleted {
		t.Fatalf("expected the blocked tutor's lesson to stay COMPLETED, got %s", status)
	}
	if status := lessonStatus(t, db, 1); status != lessondomain.LessonStatusBilled {
		t.Fatalf("expected the healthy tutor's lesson BILLED, got %s", status)
	}
}

func TestAccrueRecoversFailedGroup(t *testing.T) {
	db := setupPayoutTestDB(t)
	svc := newPayoutTestService(t, db)
	seedLesson(t, db, 1, 1)
	seedLesson(t, db, 2, 666)
	lines := []invoicedomain.BillingLine{
		line(1, 1, 10000),
		line(2, 666, 20000),
	}

	err := db.Exec(`
		CREATE TRIGGER block_tutor BEFORE INSERT ON payouts
		WHEN NEW.tutor_id = 666
		BEGIN
			SELECT RAISE(ABORT, 'tutor_blocked');
		END`).Error
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	results, err := svc.Accrue(context.Background(), 900, lines)
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if results[1].Err == nil {
		t.Fatalf("expected the blocked group to fail")
	}

	if err := db.Exec(`DROP TRIGGER block_tutor`).Error; err != nil {
		t.Fatalf("drop trigger: %v", err)
	}

	// Resubmitting the same lines accrues only the group whose lessons were
	// never claimed.
	retried, err := svc.Accrue(context.Background(), 900, lines)
	if err != nil {
		t.Fatalf("retry accrue: %v", err)
	}
	first, second := retried[0], retried[1]
	if first.Err != nil || first.EarnedCents != 0 || first.Payout != nil {
		t.Fatalf("expected the already-accrued group to be a no-op, got earned %d (%v)", first.EarnedCents, first.Err)
	}
	if second.Err != nil {
		t.Fatalf("expected the blocked group to recover, got %v", second.Err)
	}
	if second.EarnedCents != 20000 || second.Payout.PayoutAmountCents != 15000 {
		t.Fatalf("expected recovered payout 20000/15000, got %d/%d", second.EarnedCents, second.Payout.PayoutAmountCents)
	}

	// Tutor 1 must not double-accrue across the two calls.
	var payout payoutdomain.Payout
	if err := db.First(&payout, "tutor_id = ?", 1).Error; err != nil {
		t.Fatalf("load tutor 1 payout: %v", err)
	}
	if payout.TotalEarningCents != 10000 {
		t.Fatalf("expected tutor 1 total 10000, got %d", payout.TotalEarningCents)
	}
}

func TestAccrueValidation(t *testing.T) {
	db := setupPayoutTestDB(t)
	svc := newPayoutTestService(t, db)

	_, err := svc.Accrue(context.Background(), 0, []invoicedomain.BillingLine{line(1, 1, 100)})
	if !errors.Is(err, payoutdomain.ErrInvalidInvoice) {
		t.Fatalf("expected invalid_invoice, got %v", err)
	}

	_, err = svc.Accrue(context.Background(), 900, nil)
	if !errors.Is(err, payoutdomain.ErrEmptyLineItems) {
		t.Fatalf("expected empty_line_items, got %v", err)
	}

	_, err = svc.Accrue(context.Background(), 900, []invoicedomain.BillingLine{line(1, 0, 100)})
	if !errors.Is(err, payoutdomain.ErrInvalidTutor) {
		t.Fatalf("expected invalid_tutor, got %v", err)
	}

	_, err = svc.Accrue(context.Background(), 900, []invoicedomain.BillingLine{line(1, 1, -1)})
	if !errors.Is(err, payoutdomain.ErrInvalidAmount) {
		t.Fatalf("expected invalid_amount, got %v", err)
	}
}

func TestAccrueConcurrentRunsKeepTotalsConsistent(t *testing.T) {
	// Shared-cache memory databases serialize writers too eagerly for this
	// test; a file-backed database with immediate transactions lets the
	// accruals genuinely contend for the payout row.
	dsn := fmt.Sprintf("file:%s/payouts.db?_busy_timeout=5000&_txlock=immediate", t.TempDir())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&payoutdomain.Payout{}, &lessondomain.Lesson{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc := newPayoutTestService(t, db)

	amounts := []int64{1000, 2000, 3000, 4000, 5000, 6000}
	for i := range amounts {
		seedLesson(t, db, snowflake.ID(i+1), 1)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(amounts))
	for i, amount := range amounts {
		wg.Add(1)
		go func(lessonID snowflake.ID, amount int64) {
			defer wg.Done()
			results, err := svc.Accrue(context.Background(), 900, []invoicedomain.BillingLine{line(lessonID, 1, amount)})
			if err == nil && results[0].Err != nil {
				err = results[0].Err
			}
			errs <- err
		}(snowflake.ID(i+1), amount)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent accrue: %v", err)
		}
	}

	var payouts []payoutdomain.Payout
	if err := db.Find(&payouts).Error; err != nil {
		t.Fatalf("load payouts: %v", err)
	}
	if len(payouts) != 1 {
		t.Fatalf("expected a single payout row, got %d", len(payouts))
	}
	// No accrual may be lost, and the amount always derives from the total.
	if payouts[0].TotalEarningCents != 21000 {
		t.Fatalf("expected total earning 21000, got %d", payouts[0].TotalEarningCents)
	}
	if payouts[0].PayoutAmountCents != payoutdomain.PayoutFor(21000) {
		t.Fatalf("expected payout %d, got %d", payoutdomain.PayoutFor(21000), payouts[0].PayoutAmountCents)
	}
}

func TestCurrentPeriod(t *testing.T) {
	db := setupPayoutTestDB(t)
	svc := newPayoutTestService(t, db)
	seedLesson(t, db, 1, 1)
	seedLesson(t, db, 2, 2)

	_, err := svc.Accrue(context.Background(), 900, []invoicedomain.BillingLine{
		line(1, 1, 10000),
		line(2, 2, 20000),
	})
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}

	payouts, err := svc.CurrentPeriod(context.Background())
	if err != nil {
		t.Fatalf("current period: %v", err)
	}
	if len(payouts) != 2 {
		t.Fatalf("expected 2 payouts, got %d", len(payouts))
	}
	// Ordered by earning, largest first.
	if payouts[0].TotalEarningCents != 20000 || payouts[1].TotalEarningCents != 10000 {
		t.Fatalf("unexpected ordering: %d, %d", payouts[0].TotalEarningCents, payouts[1].TotalEarningCents)
	}
}

func TestMarkPaidPayout(t *testing.T) {
	db := setupPayoutTestDB(t)
	svc := newPayoutTestService(t, db)
	seedLesson(t, db, 1, 1)

	results, err := svc.Accrue(context.Background(), 900, []invoicedomain.BillingLine{line(1, 1, 10000)})
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}

	paid, err := svc.MarkPaid(context.Background(), results[0].Payout.ID.String())
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != payoutdomain.PayoutStatusPaid {
		t.Fatalf("expected PAID, got %s", paid.Status)
	}
	if paid.PaidAt == nil {
		t.Fatalf("expected paid_at to be set")
	}

	_, err = svc.MarkPaid(context.Background(), results[0].Payout.ID.String())
	if !errors.Is(err, payoutdomain.ErrPayoutNotPending) {
		t.Fatalf("expected payout_not_pending, got %v", err)
	}
}
