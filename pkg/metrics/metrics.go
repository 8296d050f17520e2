package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadesk_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// PermissionChecks counts authorization decisions by resource type, action
	// and outcome (allow|deny|error).
	PermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadesk_permission_checks_total",
			Help: "Total number of permission resolution decisions",
		},
		[]string{"resource_type", "action", "result"},
	)

	// AccessRequests counts access-request workflow transitions by outcome
	// (created|approved|denied|cancelled).
	AccessRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadesk_access_requests_total",
			Help: "Total number of access request transitions",
		},
		[]string{"outcome"},
	)

	// ExpiredPermissionsSwept tracks rows deactivated by the expiry sweep.
	ExpiredPermissionsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediadesk_expired_permissions_swept_total",
			Help: "Number of permission rows deactivated by the expiry sweep",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediadesk_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
