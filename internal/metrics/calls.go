package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CallsTotal tracks protocol-manager calls by dialect, method, and
	// outcome.
	CallsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calls",
			Name:      "total",
			Help:      "Total number of protocol calls issued through a Client",
		},
		[]string{"dialect", "method", "status"}, // keepassrpc|keepassxc, GetRoot|get-logins|..., success|error
	)

	// CallDuration tracks round-trip latency for a protocol call from the
	// moment it is accepted on the worker's call channel to the moment its
	// reply is delivered.
	CallDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "calls",
			Name:      "duration_seconds",
			Help:      "Protocol call round-trip duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"dialect", "method"},
	)
)
