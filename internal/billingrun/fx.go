package billingrun

import (
	"context"

	"github.com/tutorbase/tutorbase/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("billingrun",
	fx.Provide(DefaultWorkerConfig),
	fx.Provide(NewRunner),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

func DefaultWorkerConfig(cfg config.Config) WorkerConfig {
	return WorkerConfig{
		Enabled:      cfg.Billing.WorkerEnabled,
		BatchSize:    cfg.Billing.BatchSize,
		PollInterval: cfg.Billing.PollInterval,
	}
}

func runWorker(lc fx.Lifecycle, worker *Worker) {
	if !worker.cfg.Enabled {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go worker.RunForever(context.Background())
			return nil
		},
	})
}
