package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the monitoring core.
// All observer methods are nil-safe so wiring stays optional in tests.
type Metrics struct {
	// Registrations counts tourist registrations.
	Registrations prometheus.Counter

	// ActiveSessions tracks the number of currently active sessions.
	ActiveSessions prometheus.Gauge

	// ZoneTransitions counts zone changes by destination zone.
	ZoneTransitions *prometheus.CounterVec

	// AlertTransitions counts alert lifecycle transitions by kind.
	AlertTransitions *prometheus.CounterVec

	// ResponseTime observes resolution latency in seconds.
	ResponseTime prometheus.Histogram

	// Notifications counts dispatched notifications by kind.
	Notifications *prometheus.CounterVec
}

// New creates a Metrics instance with all core metrics registered
// on the default registry.
func New() *Metrics {
	return &Metrics{
		Registrations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "safetyband_registrations_total",
			Help: "Total tourist registrations",
		}),

		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "safetyband_active_sessions",
			Help: "Number of currently active sessions",
		}),

		ZoneTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "safetyband_zone_transitions_total",
			Help: "Zone transitions by destination zone",
		}, []string{"zone"}),

		AlertTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "safetyband_alert_transitions_total",
			Help: "Alert lifecycle transitions by kind",
		}, []string{"transition"}), // transition: "created", "escalated", "resolved"

		ResponseTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "safetyband_alert_response_seconds",
			Help:    "Time from alert creation to resolution",
			Buckets: []float64{15, 30, 60, 120, 300, 600, 1800, 3600},
		}),

		Notifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "safetyband_notifications_total",
			Help: "Notifications enqueued by kind",
		}, []string{"kind"}),
	}
}

// IncRegistration records one completed registration.
func (m *Metrics) IncRegistration() {
	if m != nil {
		m.Registrations.Inc()
	}
}

// SetActiveSessions records the current active session count.
func (m *Metrics) SetActiveSessions(n int) {
	if m != nil {
		m.ActiveSessions.Set(float64(n))
	}
}

// IncZoneTransition records a session entering a zone.
func (m *Metrics) IncZoneTransition(zone string) {
	if m != nil {
		m.ZoneTransitions.WithLabelValues(zone).Inc()
	}
}

// IncAlertTransition records an alert lifecycle transition.
func (m *Metrics) IncAlertTransition(transition string) {
	if m != nil {
		m.AlertTransitions.WithLabelValues(transition).Inc()
	}
}

// ObserveResponseTime records the resolution latency of one alert.
func (m *Metrics) ObserveResponseTime(d time.Duration) {
	if m != nil {
		m.ResponseTime.Observe(d.Seconds())
	}
}

// IncNotification records an enqueued notification.
func (m *Metrics) IncNotification(kind string) {
	if m != nil {
		m.Notifications.WithLabelValues(kind).Inc()
	}
}
