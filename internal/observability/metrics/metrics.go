package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the scheduling flows.
type SchedulingMetrics struct {
	requestsTotal      *prometheus.CounterVec
	collisionsTotal    prometheus.Counter
	rescheduledTotal   prometheus.Counter
	absenceExtension   prometheus.Histogram
	notifyFailures     *prometheus.CounterVec
	generationDuration prometheus.Histogram
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindwell",
			Subsystem: "scheduling",
			Name:      "requests_total",
			Help:      "Total therapy request creations",
		}, []string{"formula", "status"}),
		collisionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mindwell",
			Subsystem: "scheduling",
			Name:      "collisions_rejected_total",
			Help:      "Total bookings rejected by the collision detector",
		}),
		rescheduledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mindwell",
			Subsystem: "scheduling",
			Name:      "sessions_rescheduled_total",
			Help:      "Total sessions moved by absence rescheduling",
		}),
		absenceExtension: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mindwell",
			Subsystem: "scheduling",
			Name:      "absence_extension_days",
			Help:      "Calendar days schedules were extended per absence",
			Buckets:   []float64{7, 14, 21, 28, 42, 56, 84},
		}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindwell",
			Subsystem: "scheduling",
			Name:      "notify_failures_total",
			Help:      "Total schedule notification delivery failures",
		}, []string{"kind"}),
		generationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mindwell",
			Subsystem: "scheduling",
			Name:      "generation_duration_seconds",
			Help:      "Latency of schedule generation plus persistence",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.requestsTotal, m.collisionsTotal, m.rescheduledTotal,
		m.absenceExtension, m.notifyFailures, m.generationDuration,
	)
	return m
}

func (m *SchedulingMetrics) ObserveRequest(formula, status string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(formula, status).Inc()
}

func (m *SchedulingMetrics) ObserveCollision() {
	if m == nil {
		return
	}
	m.collisionsTotal.Inc()
}

func (m *SchedulingMetrics) ObserveRescheduled(sessions int) {
	if m == nil {
		return
	}
	m.rescheduledTotal.Add(float64(sessions))
}

func (m *SchedulingMetrics) ObserveAbsenceExtension(days int) {
	if m == nil {
		return
	}
	m.absenceExtension.Observe(float64(days))
}

func (m *SchedulingMetrics) ObserveNotifyFailure(kind string) {
	if m == nil {
		return
	}
	m.notifyFailures.WithLabelValues(kind).Inc()
}

func (m *SchedulingMetrics) ObserveGenerationDuration(seconds float64) {
	if m == nil {
		return
	}
	m.generationDuration.Observe(seconds)
}
