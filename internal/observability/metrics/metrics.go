package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "careconnect"

// BookingMetrics exposes counters/histograms for the booking flows.
type BookingMetrics struct {
	operationsTotal     *prometheus.CounterVec
	availabilityLatency prometheus.Histogram
	completedTotal      prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "operations_total",
			Help:      "Booking operations by kind and outcome",
		}, []string{"operation", "outcome"}),
		availabilityLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "availability_latency_seconds",
			Help:      "Latency of availability resolution",
			Buckets:   prometheus.DefBuckets,
		}),
		completedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "completed_total",
			Help:      "Appointments moved to COMPLETED by the sweeper",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.availabilityLatency, m.completedTotal)
	return m
}

// ObserveOperation counts one book/cancel/reschedule/confirm attempt.
func (m *BookingMetrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *BookingMetrics) ObserveAvailabilityLatency(seconds float64) {
	if m == nil {
		return
	}
	m.availabilityLatency.Observe(seconds)
}

func (m *BookingMetrics) AddCompleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.completedTotal.Add(float64(n))
}

// NotificationMetrics tracks notification persistence and real-time delivery.
type NotificationMetrics struct {
	emittedTotal  *prometheus.CounterVec
	publishTotal  *prometheus.CounterVec
	emailTotal    *prometheus.CounterVec
	connectedSubs prometheus.Gauge
}

func NewNotificationMetrics(reg prometheus.Registerer) *NotificationMetrics {
	m := &NotificationMetrics{
		emittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "emitted_total",
			Help:      "Notifications persisted by type",
		}, []string{"type"}),
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "publish_total",
			Help:      "Real-time publishes by outcome",
		}, []string{"outcome"}),
		emailTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "email_total",
			Help:      "Notification emails by outcome",
		}, []string{"outcome"}),
		connectedSubs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.emittedTotal, m.publishTotal, m.emailTotal, m.connectedSubs)
	return m
}

func (m *NotificationMetrics) ObserveEmitted(notificationType string) {
	if m == nil {
		return
	}
	m.emittedTotal.WithLabelValues(notificationType).Inc()
}

func (m *NotificationMetrics) ObservePublish(outcome string) {
	if m == nil {
		return
	}
	m.publishTotal.WithLabelValues(outcome).Inc()
}

func (m *NotificationMetrics) ObserveEmail(outcome string) {
	if m == nil {
		return
	}
	m.emailTotal.WithLabelValues(outcome).Inc()
}

func (m *NotificationMetrics) ClientConnected() {
	if m == nil {
		return
	}
	m.connectedSubs.Inc()
}

func (m *NotificationMetrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.connectedSubs.Dec()
}
