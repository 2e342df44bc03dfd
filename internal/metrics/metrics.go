package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AttemptsTotal tracks terminal outcomes per target
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotwatch_attempts_total",
			Help: "Total number of completed invocations",
		},
		[]string{"target", "outcome"},
	)

	// IdentityRotationsTotal tracks identity rotations per target and reason
	IdentityRotationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotwatch_identity_rotations_total",
			Help: "Total number of identity rotations",
		},
		[]string{"target", "reason"},
	)

	// CredentialRotationsTotal tracks credential selections per target
	CredentialRotationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotwatch_credential_rotations_total",
			Help: "Total number of credential selections",
		},
		[]string{"target"},
	)

	// CooldownSkipsTotal tracks invocations suppressed by the captcha cooldown
	CooldownSkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotwatch_cooldown_skips_total",
			Help: "Total number of invocations skipped due to cooldown",
		},
		[]string{"target"},
	)

	// EgressLookupsTotal tracks IP-reflection lookups per service and status
	EgressLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotwatch_egress_lookups_total",
			Help: "Total number of egress IP lookups",
		},
		[]string{"service", "status"},
	)

	// ProbeDuration tracks probe execution time
	ProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slotwatch_probe_duration_seconds",
			Help:    "Probe execution time in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"target"},
	)

	// NotificationsTotal tracks notification deliveries per status
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotwatch_notifications_total",
			Help: "Total number of notification deliveries",
		},
		[]string{"status"},
	)
)
