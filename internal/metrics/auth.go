package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts tracks handshake/setup attempts by dialect, method
	// (srp, key_resumption, handshake), and outcome.
	AuthAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Total number of authentication/association attempts",
		},
		[]string{"dialect", "method", "status"},
	)

	// Reauthentications tracks worker-triggered re-authentications
	// (KeePassRPC mid-session decrypt failure, KeePassXC database-locked
	// signal).
	Reauthentications = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "reauthentications_total",
			Help:      "Total number of re-authentications triggered during the Ready loop",
		},
		[]string{"dialect", "reason"}, // decrypt_failure, database_locked
	)

	// AuthDuration tracks handshake/setup wall-clock duration, including
	// any time spent blocked on a password prompt or waiting for a locked
	// database to unlock.
	AuthDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "duration_seconds",
			Help:      "Authentication/association duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 18), // 1ms to ~131s, wide enough to cover a prompt wait
		},
		[]string{"dialect"},
	)
)
