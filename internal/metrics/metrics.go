package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventbook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventbook",
			Name:      "booking_transitions_total",
			Help:      "Booking lifecycle transition attempts by action and result.",
		},
		[]string{"action", "result"},
	)

	sweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventbook",
			Name:      "timeout_sweep_transitions_total",
			Help:      "Time-driven transitions applied by the sweep, by kind.",
		},
		[]string{"kind"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventbook",
			Name:      "notifications_total",
			Help:      "Notification deliveries by channel and result.",
		},
		[]string{"channel", "result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, transitions, sweeps, notifications)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncTransition records a transition attempt outcome ("ok" or an error kind).
func IncTransition(action, result string) {
	transitions.WithLabelValues(action, result).Inc()
}

// IncSweep records one sweep-applied transition of the given kind.
func IncSweep(kind string) {
	sweeps.WithLabelValues(kind).Inc()
}

// IncNotification records a notification delivery outcome.
func IncNotification(channel, result string) {
	notifications.WithLabelValues(channel, result).Inc()
}
