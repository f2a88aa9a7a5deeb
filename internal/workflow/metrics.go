package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are registered on the registerer passed to NewMetrics; a nil
// registerer yields working but unexported collectors.
type Metrics struct {
	runs           *prometheus.CounterVec
	workerFailures *prometheus.CounterVec
	duration       prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lifetracker",
				Subsystem: "workflow",
				Name:      "runs_total",
				Help:      "Workflow runs by final state.",
			},
			[]string{"outcome"},
		),
		workerFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lifetracker",
				Subsystem: "workflow",
				Name:      "worker_failures_total",
				Help:      "Worker calls that returned an error, timed out or panicked.",
			},
			[]string{"worker"},
		),
		duration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "lifetracker",
				Subsystem: "workflow",
				Name:      "run_duration_seconds",
				Help:      "End-to-end workflow latency.",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
			},
		),
	}
}
