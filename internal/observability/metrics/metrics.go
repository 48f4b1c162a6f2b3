package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for slot queries, admissions and
// calendar sync.
type BookingMetrics struct {
	admissionsTotal    *prometheus.CounterVec
	cancellationsTotal *prometheus.CounterVec
	slotQueryLatency   *prometheus.HistogramVec
	calendarSyncTotal  *prometheus.CounterVec
	calendarAttempts   *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		admissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "admissions_total",
			Help:      "Booking admission attempts by outcome",
		}, []string{"outcome"}),
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Booking cancellations by outcome",
		}, []string{"outcome"}),
		slotQueryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "slot_query_seconds",
			Help:      "Latency of slot generation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		calendarSyncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "calendar",
			Name:      "sync_total",
			Help:      "Calendar bridge calls by operation and outcome",
		}, []string{"operation", "outcome"}),
		calendarAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "calendar",
			Name:      "sync_attempts",
			Help:      "Attempts used before a calendar job settled",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		}, []string{"operation", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.admissionsTotal, m.cancellationsTotal, m.slotQueryLatency, m.calendarSyncTotal, m.calendarAttempts)
	return m
}

// ObserveAdmission records an admission outcome such as "admitted" or "conflict".
func (m *BookingMetrics) ObserveAdmission(outcome string) {
	if m == nil {
		return
	}
	m.admissionsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveCancellation(outcome string) {
	if m == nil {
		return
	}
	m.cancellationsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveSlotQuery(result string, seconds float64) {
	if m == nil {
		return
	}
	m.slotQueryLatency.WithLabelValues(result).Observe(seconds)
}

// ObserveCalendarCall records one bridge call.
func (m *BookingMetrics) ObserveCalendarCall(operation, outcome string) {
	if m == nil {
		return
	}
	m.calendarSyncTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveCalendarSettled records the attempts a job used once it succeeded or gave up.
func (m *BookingMetrics) ObserveCalendarSettled(operation, outcome string, attempts int) {
	if m == nil {
		return
	}
	m.calendarAttempts.WithLabelValues(operation, outcome).Observe(float64(attempts))
}
