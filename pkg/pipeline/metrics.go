package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the collectors of one pipeline.
type Metrics struct {
	// PITs counts input records by status: read, skipped, unmatched.
	PITs *prometheus.CounterVec
	// Outcomes counts outcomes by reference dataset and kind.
	Outcomes *prometheus.CounterVec
	// InFlight is the number of tasks currently evaluating.
	InFlight prometheus.Gauge
	// TaskDuration observes evaluation latency per reference dataset.
	TaskDuration *prometheus.HistogramVec
}

func newMetrics(r prometheus.Registerer) *Metrics {
	m := &Metrics{
		PITs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "infer",
			Name:      "pits_total",
			Help:      "The total number of input PITs by status.",
		}, []string{"status"}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "infer",
			Name:      "outcomes_total",
			Help:      "The total number of task outcomes by reference dataset and kind.",
		}, []string{"dataset", "kind"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "infer",
			Name:      "tasks_in_flight",
			Help:      "The number of tasks currently being evaluated.",
		}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "infer",
			Name:      "task_duration_seconds",
			Help:      "Task evaluation latency, including the search backend call.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"dataset"}),
	}
	r.MustRegister(m.PITs, m.Outcomes, m.InFlight, m.TaskDuration)
	return m
}
