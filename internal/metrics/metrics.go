package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsSubmitted counts requests accepted from the wizard
	RequestsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitequeue",
			Subsystem: "queue",
			Name:      "requests_submitted_total",
			Help:      "Total number of AI requests submitted",
		},
		[]string{"request_type"},
	)

	// Transitions counts accepted workflow transitions
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitequeue",
			Subsystem: "queue",
			Name:      "transitions_total",
			Help:      "Total number of accepted status transitions",
		},
		[]string{"from", "to", "actor_kind"},
	)

	// TransitionConflicts counts conditional updates that lost a race
	TransitionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitequeue",
			Subsystem: "queue",
			Name:      "transition_conflicts_total",
			Help:      "Total number of transitions rejected because the row changed underneath",
		},
		[]string{"to"},
	)

	// TimeToComplete observes the age of requests when they complete
	TimeToComplete = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sitequeue",
			Subsystem: "queue",
			Name:      "time_to_complete_seconds",
			Help:      "Time from submission to completion",
			Buckets:   []float64{30, 60, 300, 900, 1800, 3600, 7200, 21600, 86400},
		},
		[]string{"request_type"},
	)

	// SweepRuns counts sweep executions
	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitequeue",
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Total number of expiry sweep runs",
		},
		[]string{"status"},
	)

	// SweepActions counts records the sweep changed
	SweepActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitequeue",
			Subsystem: "sweep",
			Name:      "actions_total",
			Help:      "Total number of requests expired or released by the sweep",
		},
		[]string{"action"},
	)

	// SweepDuration observes sweep run time
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sitequeue",
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Expiry sweep duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// QueueDepth reports the request count per status, refreshed by Stats and the sweep
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sitequeue",
			Subsystem: "queue",
			Name:      "requests",
			Help:      "Current number of requests by status",
		},
		[]string{"status"},
	)

	// DraftGenerations counts AI draft calls
	DraftGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitequeue",
			Subsystem: "generation",
			Name:      "drafts_total",
			Help:      "Total number of AI draft generation calls",
		},
		[]string{"request_type", "status"},
	)

	// HTTPRequests counts served HTTP requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitequeue",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	// HTTPDuration observes HTTP handler latency
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sitequeue",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// ActorKind collapses an actor id into a low-cardinality label.
func ActorKind(actor, system string) string {
	if actor == system {
		return "system"
	}
	return "operator"
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
