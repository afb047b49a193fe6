// Package metrics exposes karp's Prometheus instrumentation: protocol call
// latency and outcomes, re-authentication events, and session-store
// backend fallbacks.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "karp"

// Registry is the collector registry every metric in this package is
// registered against, served by Handler/StartServer rather than the
// global default registry so a karp process never picks up metrics
// registered by an unrelated package sharing its address space.
var Registry = prometheus.NewRegistry()
