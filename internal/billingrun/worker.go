package billingrun

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tutorbase/tutorbase/internal/events"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type WorkerParams struct {
	fx.In

	Log    *zap.Logger
	Runner *Runner
	Outbox *events.Outbox
	Config WorkerConfig `optional:"true"`
}

// Worker periodically sweeps students with completed, unbilled lessons and
// runs billing for each of them. One student's failure never blocks the rest
// of the batch.
type Worker struct {
	log    *zap.Logger
	runner *Runner
	outbox *events.Outbox
	cfg    WorkerConfig
}

func NewWorker(p WorkerParams) *Worker {
	return &Worker{
		log:    p.Log.Named("billingrun.worker"),
		runner: p.Runner,
		outbox: p.Outbox,
		cfg:    p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(); err != nil {
			w.log.Warn("billing sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce sweeps one batch of billable students and returns how many were
// billed successfully.
func (w *Worker) RunOnce() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.RunTimeout)
	defer cancel()

	return w.processBatch(ctx, w.cfg.BatchSize)
}

func (w *Worker) processBatch(ctx context.Context, limit int) (int, error) {
	if w.runner == nil {
		return 0, errors.New("billing_worker_unavailable")
	}

	students, err := w.runner.ListBillableStudents(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(students) == 0 {
		return 0, nil
	}

	billed := 0
	for _, studentID := range students {
		result, err := w.runner.RunForStudent(ctx, studentID)
		if err != nil {
			if errors.Is(err, ErrNoBillableLessons) {
				continue
			}
			w.log.Warn("billing run failed",
				zap.String("student_id", studentID.String()),
				zap.Error(err),
			)
			w.publishRunFailed(ctx, studentID.String(), err)
			continue
		}
		billed++
		w.log.Info("billing run completed",
			zap.String("student_id", studentID.String()),
			zap.String("invoice_id", result.InvoiceID.String()),
			zap.Bool("invoice_created", result.InvoiceCreated),
			zap.Int("applied_lines", result.AppliedLines),
			zap.Int("failed_accruals", result.FailedAccruals),
		)
	}
	return billed, nil
}

func (w *Worker) publishRunFailed(ctx context.Context, studentID string, runErr error) {
	if w.outbox == nil {
		return
	}
	payload := events.BillingRunFailedPayload{
		StudentID: studentID,
		Reason:    runErr.Error(),
	}
	err := w.outbox.Publish(ctx, events.Event{
		Type:      events.EventBillingRunFailed,
		Payload:   payload.ToMap(),
		DedupeKey: fmt.Sprintf("%s:%s:%d", events.EventBillingRunFailed, studentID, time.Now().UTC().Unix()),
	})
	if err != nil {
		w.log.Warn("outbox publish failed", zap.String("event", events.EventBillingRunFailed), zap.Error(err))
	}
}
