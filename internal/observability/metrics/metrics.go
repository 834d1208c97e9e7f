package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the slot-booking flows.
type BookingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Total lifecycle transitions by kind and outcome",
		}, []string{"kind", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveTransition(kind, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(kind, outcome).Inc()
}

// PaymentMetrics exposes counters/histograms for payment reconciliation.
type PaymentMetrics struct {
	confirmationsTotal *prometheus.CounterVec
	confirmLatency     *prometheus.HistogramVec
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	m := &PaymentMetrics{
		confirmationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "payments",
			Name:      "confirmations_total",
			Help:      "Total payment confirmations by provider and result",
		}, []string{"provider", "result"}),
		confirmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "payments",
			Name:      "confirm_latency_seconds",
			Help:      "Latency of payment confirmation including provider lookups",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.confirmationsTotal, m.confirmLatency)
	return m
}

func (m *PaymentMetrics) ObserveConfirmation(provider, result string) {
	if m == nil {
		return
	}
	m.confirmationsTotal.WithLabelValues(provider, result).Inc()
}

func (m *PaymentMetrics) ObserveConfirmLatency(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.confirmLatency.WithLabelValues(provider).Observe(seconds)
}
