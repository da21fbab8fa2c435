package pipeline

import (
	"sync"
	"time"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the run coordinator.
//
// Metrics:
//   - replenishment_runs_total{kind,status}
//   - replenishment_run_duration_seconds{kind}
//   - replenishment_stage_errors_total{kind,stage}
//   - replenishment_alerts_sent_total{severity}
//   - replenishment_liquidation_requests_total{tier}
type Metrics struct {
	RunsTotal               *prometheus.CounterVec
	RunDuration             *prometheus.HistogramVec
	StageErrorsTotal        *prometheus.CounterVec
	AlertsSentTotal         *prometheus.CounterVec
	LiquidationRequestTotal *prometheus.CounterVec
}

// NewMetrics registers the coordinator metrics on the default registry once
// per process.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "replenishment_runs_total",
					Help: "Total number of finished replenishment runs",
				},
				[]string{"kind", "status"},
			),
			RunDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "replenishment_run_duration_seconds",
					Help:    "Duration of replenishment runs in seconds",
					Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
				},
				[]string{"kind"},
			),
			StageErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "replenishment_stage_errors_total",
					Help: "Total number of stage failures recorded by runs",
				},
				[]string{"kind", "stage"},
			),
			AlertsSentTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "replenishment_alerts_sent_total",
					Help: "Total number of grouped stock alerts delivered",
				},
				[]string{"severity"},
			),
			LiquidationRequestTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "replenishment_liquidation_requests_total",
					Help: "Total number of liquidation requests emitted",
				},
				[]string{"tier"},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) observeRun(kind domain.RunKind, status domain.RunStatus, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(string(kind), string(status)).Inc()
	m.RunDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

func (m *Metrics) stageError(kind domain.RunKind, stage string) {
	if m == nil {
		return
	}
	m.StageErrorsTotal.WithLabelValues(string(kind), stage).Inc()
}

func (m *Metrics) alertSent(severity domain.Severity) {
	if m == nil {
		return
	}
	m.AlertsSentTotal.WithLabelValues(string(severity)).Inc()
}

func (m *Metrics) liquidationRequests(counts map[domain.LiquidationTier]int) {
	if m == nil {
		return
	}
	for tier, n := range counts {
		if n > 0 {
			m.LiquidationRequestTotal.WithLabelValues(string(tier)).Add(float64(n))
		}
	}
}
