package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveAllocation("ok", 2*time.Millisecond)
	m.ObserveAllocation("ok", time.Millisecond)
	m.ObserveAllocation("unavailable", time.Second)
	m.ObserveAssignment("main", "main_id", "auto")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.allocations.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.allocations.WithLabelValues("unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assignments.WithLabelValues("main", "main_id", "auto")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
