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
	studentdomain "github.com/tutorbase/tutorbase/internal/student/domain"
	"github.com/tutorbase/tutorbase/pkg/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var billingInstant = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func setupInvoiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&studentdomain.Parent{},
		&studentdomain.Student{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLineItem{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newInvoiceTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return &Service{
		db:  db,
		log: zap.NewNop(),

		genID:    node,
		clock:    clock.Fixed{Instant: billingInstant},
		currency: "MYR",

		invoicerepo: repository.ProvideStore[invoicedomain.Invoice](db),
	}
}

func insertStudent(t *testing.T, db *gorm.DB, studentID, parentID snowflake.ID) {
	t.Helper()
	err := db.Create(&studentdomain.Student{
		ID:       studentID,
		ParentID: parentID,
		Name:     "Test Student",
	}).Error
	if err != nil {
		t.Fatalf("insert student: %v", err)
	}
}

func reconcileRequest(studentID, parentID snowflake.ID, number string, lines ...invoicedomain.BillingLine) invoicedomain.ReconcileRequest {
	return invoicedomain.ReconcileRequest{
		StudentID:     studentID,
		ParentID:      parentID,
		InvoiceNumber: number,
		Lines:         lines,
	}
}

func TestReconcileConcurrentRunsKeepSubtotalConsistent(t *testing.T) {
	// A file-backed database with immediate transactions lets concurrent
	// reconciles actually contend; shared-cache memory databases serialize
	// them before the interesting part.
	dsn := fmt.Sprintf("file:%s/invoices.db?_busy_timeout=5000&_txlock=immediate", t.TempDir())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&studentdomain.Parent{},
		&studentdomain.Student{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLineItem{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc := newInvoiceTestService(t, db)
	insertStudent(t, db, 100, 200)

	const workers = 6
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Reconcile(context.Background(), reconcileRequest(100, 200, fmt.Sprintf("INV-202603-%d", i+1),
				invoicedomain.BillingLine{LessonID: snowflake.ID(i + 1), TutorID: 10, Subject: "Math", DurationMinutes: 60, HourlyRateCents: 10000, AmountCents: int64((i + 1) * 1000)},
			))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent reconcile: %v", err)
		}
	}

	var invoices []invoicedomain.Invoice
	if err := db.Find(&invoices).Error; err != nil {
		t.Fatalf("load invoices: %v", err)
	}
	if len(invoices) != 1 {
		t.Fatalf("expected a single invoice, got %d", len(invoices))
	}

	var itemSum int64
	if err := db.Model(&invoicedomain.InvoiceLineItem{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("invoice_id = ?", invoices[0].ID).
		Scan(&itemSum).Error; err != nil {
		t.Fatalf("sum line items: %v", err)
	}
	// No reconcile's increment may be lost: 1000+2000+...+6000.
	if itemSum != 21000 {
		t.Fatalf("expected line items to sum to 21000, got %d", itemSum)
	}
	if invoices[0].SubtotalCents != itemSum {
		t.Fatalf("subtotal %d does not match line item sum %d", invoices[0].SubtotalCents, itemSum)
	}
	if invoices[0].TaxCents != invoicedomain.TaxFor(itemSum) {
		t.Fatalf("expected tax %d, got %d", invoicedomain.TaxFor(itemSum), invoices[0].TaxCents)
	}
	if invoices[0].TotalCents != itemSum+invoices[0].TaxCents {
		t.Fatalf("expected total %d, got %d", itemSum+invoices[0].TaxCents, invoices[0].TotalCents)
	}
}

func TestReconcilePreservesInterleavedIncrements(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newInvoiceTestService(t, db)
	insertStudent(t, db, 100, 200)

	if _, err := svc.Reconcile(context.Background(), reconcileRequest(100, 200, "INV-202603-1",
		invoicedomain.BillingLine{LessonID: 1, TutorID: 10, Subject: "Math", DurationMinutes: 60, HourlyRateCents: 10000, AmountCents: 10000},
	)); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}

	// Emulate another reconcile committing between this one's read of the
	// invoice and its subtotal write: the trigger bumps the subtotal while
	// the line item lands, exactly where an absolute write would clobber it.
	err := db.Exec(`
		CREATE TRIGGER bump_subtotal AFTER INSERT ON invoice_line_items
		BEGIN
			UPDATE invoices SET subtotal_cents = subtotal_cents + 777 WHERE id = NEW.invoice_id;
		END`).Error
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	resp, err := svc.Reconcile(context.Background(), reconcileRequest(100, 200, "INV-202603-2",
		invoicedomain.BillingLine{LessonID: 2, TutorID: 10, Subject: "Math", DurationMinutes: 30, HourlyRateCents: 10000, AmountCents: 5000},
	))
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}

	// 10000 + 777 (interleaved) + 5000; the increment must not be lost and
	// tax/total must derive from the re-read subtotal.
	if resp.Invoice.SubtotalCents != 15777 {
		t.Fatalf("expected subtotal 15777, got %d", resp.Invoice.SubtotalCents)
	}
	if resp.Invoice.TaxCents != invoicedomain.TaxFor(15777) {
		t.Fatalf("expected tax %d, got %d", invoicedomain.TaxFor(15777), resp.Invoice.TaxCents)
	}
	if resp.Invoice.TotalCents != 15777+resp.Invoice.TaxCents {
		t.Fatalf("expected total %d, got %d", 15777+resp.Invoice.TaxCents, resp.Invoice.TotalCents)
	}
}

func TestReconcileCreatesInvoice(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newInvoiceTestService(t, db)
	insertStudent(t, db, 100, 200)

	resp, err := svc.Reconcile(context.Background(), reconcileRequest(100, 200, "INV-202603-1",
		invoicedomain.BillingLine{LessonID: 1, TutorID: 10, Subject: "Math", DurationMinutes: 60, HourlyRateCents: 13333, AmountCents: 13333},
		invoicedomain.BillingLine{LessonID: 2, TutorID: 11, Subject: "Physics", DurationMinutes: 30, HourlyRateCents: 13334, AmountCents: 6667},
	))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if !resp.Created {
		t.Fatalf("expected invoice to be created")
	}
	if len(resp.AppliedLines) != 2 {
		t.Fatalf("expected 2 applied lines, got %d", len(resp.AppliedLines))
	}
	// 133.33 + 66.67 = 200.00; SST 6% must be exactly 12.00.
	if resp.Invoice.SubtotalCents != 20000 {
		t.Fatalf("expected subtotal 20000, got %d", resp.Invoice.SubtotalCents)
	}
	if resp.Invoice.TaxCents != 1200 {
		t.Fatalf("expected tax 1200, got %d", resp.Invoice.TaxCents)
	}
	if resp.Invoice.TotalCents != 21200 {
		t.Fatalf("expected total 21200, got %d", resp.Invoice.TotalCents)
	}
	if resp.Invoice.Status != invoicedomain.InvoiceStatusPending {
		t.Fatalf("expected PENDING invoice, got %s", resp.Invoice.Status)
	}

	items, err := svc.ListLineItems(context.Background(), resp.Invoice.ID.String())
	if err != nil {
		t.Fatalf("list line items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(items))
	}
}

func TestReconcileAccumulatesWithinPeriod(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newInvoiceTestService(t, db)
	insertStudent(t, db, 100, 200)

	first, err := svc.Reconcile(context.Background(), reconcileRequest(100, 200, "INV-202603-1",
		invoicedomain.BillingLine{LessonID: 1, TutorID: 10, Subject: "Math", DurationMinutes: 60, HourlyRateCents: 10000, AmountCents: 10000},
	))
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}

	second, err := svc.Reconcile(context.Background(), reconcileRequest(100, 200, "INV-202603-2",
		invoicedomain.BillingLine{LessonID: 2, TutorID: 10, Subject: "Math", DurationMinutes: 90, HourlyRateCents: 10000, AmountCents: 15000},
	))
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}

	if second.Created {
		t.Fatalf("second reconcile must reuse the period invoice")
	}
	if second.Invoice.ID != first.Invoice.ID {
		t.Fatalf("expected same invoice, got %s and %s", first.Invoice.ID, second.Invoice.ID)
	}
	if second.Invoice.SubtotalCents != 25000 {
		t.Fatalf("expected subtotal 25000, got %d", second.Invoice.SubtotalCents)
	}
	// Tax is recomputed from the full subtotal, never incremented.
	if second.Invoice.TaxCents != invoicedomain.TaxFor(25000) {
		t.Fatalf("expected tax %d, got %d", invoicedomain.TaxFor(25000), second.Invoice.TaxCents)
	}
	if second.Invoice.TotalCents != second.Invoice.SubtotalCents+second.Invoice.TaxCents {
		t.Fatalf("total must equal subtotal plus tax")
	}

	var count int64
	if err := db.Model(&invoicedomain.Invoice{}).Count(&count).Error; err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single invoice for the period, got %d", count)
	}
}

func TestReconcileSkipsAlreadyBilledLessons(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newInvoiceTestService(t, db)
	insertStudent(t, db, 100, 200)

	_, err := svc.Reconcile(context.Background(), reconcileRequest(100, 200, "INV-202603-1",
		invoicedomain.BillingLine{LessonID: 1, TutorID: 10, Subject: "Math", DurationMinutes: 60, HourlyRateCents: 10000, AmountCents: 10000},
	))
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}

	// Same lesson plus a new one: only the new one may land.
	resp, err := svc.Reconcile(context.Background(), reconcileRequest(100, 200, "INV-202603-2",
		invoicedomain.BillingLine{LessonID: 1, TutorID: 10, Subject: "Math", DurationMinutes: 60, HourlyRateCents: 10000, AmountCents: 10000},
		invoicedomain.BillingLine{LessonID: 2, TutorID: 10, Subject: "Math", DurationMinutes: 60, HourlyRateCents: 5000, AmountCents: 5000},
	))
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}

	if len(resp.AppliedLines) != 1 {
		t.Fatalf("expected 1 applied line, got %d", len(resp.AppliedLines))
	}
	if resp.AppliedLines[0].LessonID != 2 {
		t.Fatalf("expected lesson 2 to be applied, got %s", resp.AppliedLines[0].LessonID)
	}
	if resp.Invoice.SubtotalCents != 15000 {
		t.Fatalf("expected subtotal 15000, got %d", resp.Invoice.SubtotalCents)
	}

	var count int64
	if err := db.Model(&invoicedomain.InvoiceLineItem{}).Count(&count).Error; err != nil {
		t.Fatalf("count line items: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 line items, got %d", count)
	}
}

func TestReconcileTaxRoundsHalfUp(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newInvoiceTestService(t, db)
	insertStudent(t, db, 100, 200)

	// 1.25 * 6% = 0.075 -> rounds to 0.08.
	resp, err := svc.Reconcile(context.Background(), reconcileRequest(100, 200, "INV-202603-1",
		invoicedomain.BillingLine{LessonID: 1, TutorID: 10, Subject: "Math", DurationMinutes: 1, HourlyRateCents: 7500, AmountCents: 125},
	))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if resp.Invoice.TaxCents != 8 {
		t.Fatalf("expected tax 8, got %d", resp.Invoice.TaxCents)
	}
	if resp.Invoice.TotalCents != 133 {
		t.Fatalf("expected total 133, got %d", resp.Invoice.TotalCents)
	}
}

func TestReconcileValidation(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newInvoiceTestService(t, db)
	insertStudent(t, db, 100, 200)

	cases := []struct {
		name string
		req  invoicedomain.ReconcileRequest
		want error
	}{
		{
			name: "empty lines",
			req:  reconcileRequest(100, 200, "INV-202603-1"),
			want: invoicedomain.ErrEmptyLineItems,
		},
		{
			name: "missing student",
			req: reconcileRequest(0, 200, "INV-202603-1",
				invoicedomain.BillingLine{LessonID: 1, TutorID: 10, AmountCents: 100}),
			want: invoicedomain.ErrInvalidStudent,
		},
		{
			name: "missing parent",
			req: reconcileRequest(100, 0, "INV-202603-1",
				invoicedomain.BillingLine{LessonID: 1, TutorID: 10, AmountCents: 100}),
			want: invoicedomain.ErrInvalidParent,
		},
		{
			name: "blank invoice number",
			req: reconcileRequest(100, 200, "  ",
				invoicedomain.BillingLine{LessonID: 1, TutorID: 10, AmountCents: 100}),
			want: invoicedomain.ErrInvalidInvoiceNumber,
		},
		{
			name: "negative amount",
			req: reconcileRequest(100, 200, "INV-202603-1",
				invoicedomain.BillingLine{LessonID: 1, TutorID: 10, AmountCents: -1}),
			want: invoicedomain.ErrInvalidAmount,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Reconcile(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestReconcileUnknownStudent(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newInvoiceTestService(t, db)

	_, err := svc.Reconcile(context.Background(), reconcileRequest(999, 200, "INV-202603-1",
		invoicedomain.BillingLine{LessonID: 1, TutorID: 10, AmountCents: 100},
	))
	if !errors.Is(err, invoicedomain.ErrStudentNotFound) {
		t.Fatalf("expected student_not_found, got %v", err)
	}
}

func TestMarkPaid(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newInvoiceTestService(t, db)
	insertStudent(t, db, 100, 200)

	resp, err := svc.Reconcile(context.Background(), reconcileRequest(100, 200, "INV-202603-1",
		invoicedomain.BillingLine{LessonID: 1, TutorID: 10, Subject: "Math", DurationMinutes: 60, HourlyRateCents: 10000, AmountCents: 10000},
	))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	paid, err := svc.MarkPaid(context.Background(), resp.Invoice.ID.String())
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != invoicedomain.InvoiceStatusPaid {
		t.Fatalf("expected PAID, got %s", paid.Status)
	}
	if paid.PaidAt == nil {
		t.Fatalf("expected paid_at to be set")
	}

	_, err = svc.MarkPaid(context.Background(), resp.Invoice.ID.String())
	if !errors.Is(err, invoicedomain.ErrInvoiceNotPending) {
		t.Fatalf("expected invoice_not_pending, got %v", err)
	}
}
