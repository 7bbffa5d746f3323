// Package metrics exposes allocation telemetry as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "autoinc"

// Metrics implements counter.Recorder.
type Metrics struct {
	allocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	assignments *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		allocations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocations_total",
			Help:      "Counter allocations by outcome.",
		}, []string{"outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "allocation_duration_seconds",
			Help:      "Latency of the store round trip per allocation.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"outcome"}),
		assignments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "Values written into documents.",
		}, []string{"model", "counter", "mode"}),
	}
}

// ObserveAllocation records one store round trip.
func (m *Metrics) ObserveAllocation(outcome string, elapsed time.Duration) {
	m.allocations.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveAssignment records a value written into a document field.
func (m *Metrics) ObserveAssignment(model, counter, mode string) {
	m.assignments.WithLabelValues(model, counter, mode).Inc()
}
