package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "echannel"
	subsystem = "booking"
)

// BookingMetrics exposes counters/histograms for the appointment lifecycle.
type BookingMetrics struct {
	bookingsTotal       *prometheus.CounterVec
	bookingLatency      *prometheus.HistogramVec
	cancellationsTotal  *prometheus.CounterVec
	completionsTotal    prometheus.Counter
	slotRejectionsTotal *prometheus.CounterVec
	notificationsTotal  *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bookings_total",
			Help:      "Booking attempts by result",
		}, []string{"result"}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "booking_latency_seconds",
			Help:      "Time spent in Book including the transaction",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"result"}),
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cancellations_total",
			Help:      "Committed cancellations by refund outcome",
		}, []string{"refunded"}),
		completionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "completions_total",
			Help:      "Appointments marked completed",
		}),
		slotRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "slot_rejections_total",
			Help:      "Slot claims refused by the ledger",
		}, []string{"reason"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_total",
			Help:      "Notification pipeline outcomes by stage",
		}, []string{"stage", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.bookingLatency, m.cancellationsTotal,
		m.completionsTotal, m.slotRejectionsTotal, m.notificationsTotal)
	return m
}

func (m *BookingMetrics) ObserveBooking(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
	m.bookingLatency.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (m *BookingMetrics) ObserveCancellation(refunded bool) {
	if m == nil {
		return
	}
	label := "false"
	if refunded {
		label = "true"
	}
	m.cancellationsTotal.WithLabelValues(label).Inc()
}

func (m *BookingMetrics) ObserveCompletion() {
	if m == nil {
		return
	}
	m.completionsTotal.Inc()
}

func (m *BookingMetrics) ObserveSlotRejection(reason string) {
	if m == nil {
		return
	}
	m.slotRejectionsTotal.WithLabelValues(reason).Inc()
}

// ObserveNotification counts a notification outcome. stage is one of
// dispatch, deliver or send.
func (m *BookingMetrics) ObserveNotification(stage, status string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(stage, status).Inc()
}
