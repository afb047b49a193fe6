package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StorageBackendSelected records which link of the secret-service ->
// keychain -> file -> memory fallback chain was ultimately used for a
// session store, and whether an earlier link was skipped to reach it.
var StorageBackendSelected = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "backend_selected_total",
		Help:      "Total number of session-store backend selections, by backend and whether it was a fallback",
	},
	[]string{"backend", "fallback"}, // fallback: "true" when an earlier backend in the chain was skipped/unavailable
)
