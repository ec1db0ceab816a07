package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MembershipOperations counts membership mutations by operation and outcome
	// (success|unchanged|denied|last_admin|not_found|invalid_state|email_mismatch|error).
	MembershipOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecohub_membership_operations_total",
			Help: "Total number of membership operations",
		},
		[]string{"operation", "result"},
	)

	// InvitationTransitions counts invitation lifecycle events by resulting status.
	InvitationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecohub_invitation_transitions_total",
			Help: "Total number of invitation status transitions",
		},
		[]string{"status"},
	)

	// AdminGuardChecks counts authorization guard evaluations (allow|deny|error).
	AdminGuardChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecohub_admin_guard_checks_total",
			Help: "Total number of organization admin checks",
		},
		[]string{"result"},
	)

	// APIInFlight reports requests currently being served.
	APIInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ecohub_api_requests_in_flight",
		Help: "Number of HTTP requests being served",
	})

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecohub_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
