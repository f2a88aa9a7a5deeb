package delivery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "lifetracker"

// DispatchMetrics instruments the Dispatcher. A nil registerer yields
// working but unexported collectors.
type DispatchMetrics struct {
	submissions *prometheus.CounterVec
	sends       *prometheus.CounterVec
	duration    prometheus.Histogram
	queueDepth  prometheus.Gauge
}

func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	f := promauto.With(reg)
	return &DispatchMetrics{
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "dispatch",
			Name:      "submissions_total",
			Help:      "Messages offered to the dispatch queue, by result.",
		}, []string{"result"}),
		sends: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "dispatch",
			Name:      "sends_total",
			Help:      "Dispatched messages by final outcome.",
		}, []string{"outcome"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "dispatch",
			Name:      "send_duration_seconds",
			Help:      "Time from first attempt to final outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "dispatch",
			Name:      "queue_depth",
			Help:      "Messages waiting for a worker.",
		}),
	}
}

// PipelineMetrics counts delivery decisions.
type PipelineMetrics struct {
	deliveries *prometheus.CounterVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	return &PipelineMetrics{
		deliveries: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "delivery",
			Name:      "decisions_total",
			Help:      "Delivery pipeline results by status and reason.",
		}, []string{"status", "reason"}),
	}
}
