package observability

import (
	"github.com/tutorbase/tutorbase/internal/config"
	"github.com/tutorbase/tutorbase/internal/observability/logger"
	"github.com/tutorbase/tutorbase/internal/observability/metrics"
	"github.com/tutorbase/tutorbase/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(newLogger),
	fx.Provide(newTracingConfig),
	fx.Invoke(initTracing),
	fx.Provide(newMetricsConfig),
	fx.Provide(newBillingMetrics),
	fx.Provide(newHTTPMetrics),
)

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Environment:    cfg.Environment,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
	})
}

func initTracing(lc fx.Lifecycle, cfg tracing.Config, log *zap.Logger) error {
	_, err := tracing.NewProvider(lc, cfg, log)
	return err
}

func newTracingConfig(cfg config.Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.Tracing.Enabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.ServiceVersion,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.Tracing.ExporterEndpoint,
		ExporterProtocol: cfg.Tracing.ExporterProtocol,
		SamplingRatio:    cfg.Tracing.SamplingRatio,
	}
}

func newMetricsConfig(cfg config.Config) metrics.Config {
	return metrics.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	}
}

func newBillingMetrics(cfg metrics.Config) *metrics.BillingMetrics {
	return metrics.BillingWithConfig(cfg)
}

func newHTTPMetrics(cfg metrics.Config) (*metrics.HTTPMetrics, error) {
	return metrics.NewHTTPMetrics(cfg, otel.GetMeterProvider())
}
