package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)
	m.ObserveAdmission("admitted")
	m.ObserveAdmission("admitted")
	m.ObserveAdmission("conflict")
	m.ObserveCancellation("cancelled")
	m.ObserveSlotQuery("ok", 0.01)
	m.ObserveCalendarCall("create", "failed")
	m.ObserveCalendarSettled("create", "exhausted", 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.admissionsTotal.WithLabelValues("admitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.admissionsTotal.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calendarSyncTotal.WithLabelValues("create", "failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.calendarAttempts))
}

func TestBookingMetricsDefaultRegistry(t *testing.T) {
	m := NewBookingMetrics(nil)
	m.ObserveAdmission("admitted")
	prometheus.DefaultRegisterer.Unregister(m.admissionsTotal)
	prometheus.DefaultRegisterer.Unregister(m.cancellationsTotal)
	prometheus.DefaultRegisterer.Unregister(m.slotQueryLatency)
	prometheus.DefaultRegisterer.Unregister(m.calendarSyncTotal)
	prometheus.DefaultRegisterer.Unregister(m.calendarAttempts)
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveAdmission("admitted")
	m.ObserveCancellation("not_found")
	m.ObserveSlotQuery("ok", 0.1)
	m.ObserveCalendarCall("delete", "ok")
	m.ObserveCalendarSettled("create", "synced", 1)
}
