package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics tracks billing run outcomes and payout accrual health.
type BillingMetrics struct {
	billingRunDuration *prometheus.HistogramVec
	billingRunsTotal   *prometheus.CounterVec
	accrualFailures    prometheus.Counter
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

func Billing() *BillingMetrics {
	return BillingWithConfig(Config{})
}

func BillingWithConfig(cfg Config) *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = newBillingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return billingMetrics
}

func ResetBillingMetricsForTest() {
	billingMetricsOnce = sync.Once{}
	billingMetrics = nil
}

func newBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "tutorbase"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	billingRunDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "tutorbase_billing_run_duration_seconds",
			Help:        "Duration of one student's billing run.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			ConstLabels: constLabels,
		},
		[]string{"result"}, // success | failed
	)

	billingRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "tutorbase_billing_runs_total",
			Help:        "Total billing runs by result.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // success | failed
	)

	accrualFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "tutorbase_payout_accrual_failures_total",
			Help:        "Total tutor payout groups that failed to accrue.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		billingRunDuration,
		billingRunsTotal,
		accrualFailures,
	)

	return &BillingMetrics{
		billingRunDuration: billingRunDuration,
		billingRunsTotal:   billingRunsTotal,
		accrualFailures:    accrualFailures,
	}
}

// ObserveRun records one billing run's duration, outcome and the number of
// payout groups that failed to accrue during it.
func (m *BillingMetrics) ObserveRun(duration time.Duration, success bool, failedAccruals int) {
	if m == nil {
		return
	}

	result := "success"
	if !success {
		result = "failed"
	}

	m.billingRunDuration.WithLabelValues(result).Observe(duration.Seconds())
	m.billingRunsTotal.WithLabelValues(result).Inc()
	if failedAccruals > 0 {
		m.accrualFailures.Add(float64(failedAccruals))
	}
}
