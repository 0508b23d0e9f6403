package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	appointmentCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "barberbot",
			Name:      "appointment_created_total",
			Help:      "Count of appointments created through the bot by flow.",
		},
		[]string{"flow"},
	)

	adminDecision = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "barberbot",
			Name:      "admin_decision_total",
			Help:      "Count of admin decisions over appointments.",
		},
		[]string{"decision"},
	)

	backendError = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "barberbot",
			Name:      "backend_error_total",
			Help:      "Count of failed backend calls by category.",
		},
		[]string{"category"},
	)

	gridRefresh = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "barberbot",
			Name:      "grid_refresh_total",
			Help:      "Count of availability grid refreshes.",
		},
	)

	staleSnapshot = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "barberbot",
			Name:      "stale_snapshot_total",
			Help:      "Count of slot taps that hit a superseded snapshot.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(appointmentCreated, adminDecision, backendError,
			gridRefresh, staleSnapshot)
	})
}

func IncAppointmentCreated(flow string) {
	appointmentCreated.WithLabelValues(flow).Inc()
}

func IncAdminDecision(decision string) {
	adminDecision.WithLabelValues(decision).Inc()
}

func IncBackendError(category string) {
	backendError.WithLabelValues(category).Inc()
}

func IncGridRefresh() {
	gridRefresh.Inc()
}

func IncStaleSnapshot() {
	staleSnapshot.Inc()
}
