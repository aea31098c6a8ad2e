// Package metrics wires semalb's observability hooks (spec.md §2
// "observability hooks 5%") into Prometheus, following the registration
// pattern in
// _examples/Generativebots-ocx-backend-go-svc/internal/escrow/metrics.go.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the balancer updates.
type Metrics struct {
	BackendsLive       prometheus.Gauge
	BackendInFlight    *prometheus.GaugeVec
	BackendEvictions   prometheus.Counter
	ActiveConnections  prometheus.Gauge
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	CacheEvictions     prometheus.Counter
	CorrelationEntries prometheus.Gauge
	SessionsTotal      *prometheus.CounterVec
}

// New registers and returns the balancer's metric set against the default
// registerer. Tests that construct more than one balancer in the same
// process should use NewWithRegisterer with a fresh prometheus.Registry
// instead, since the default registerer rejects duplicate collector names.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers and returns the balancer's metric set against
// a caller-supplied registerer.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BackendsLive: f.NewGauge(prometheus.GaugeOpts{
			Name: "semalb_backends_live",
			Help: "Number of backends currently registered and live.",
		}),
		BackendInFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "semalb_backend_in_flight",
			Help: "In-flight proxy sessions per backend.",
		}, []string{"backend"}),
		BackendEvictions: f.NewCounter(prometheus.CounterOpts{
			Name: "semalb_backend_evictions_total",
			Help: "Total backends evicted due to heartbeat timeout or EOF.",
		}),
		ActiveConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "semalb_active_connections",
			Help: "Number of proxy sessions currently active.",
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "semalb_cache_hits_total",
			Help: "Total semantic cache hits.",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "semalb_cache_misses_total",
			Help: "Total semantic cache misses.",
		}),
		CacheEvictions: f.NewCounter(prometheus.CounterOpts{
			Name: "semalb_cache_evictions_total",
			Help: "Total semantic cache LRU evictions.",
		}),
		CorrelationEntries: f.NewGauge(prometheus.GaugeOpts{
			Name: "semalb_pending_requests",
			Help: "Number of requests awaiting a backend reply.",
		}),
		SessionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "semalb_sessions_total",
			Help: "Total proxy sessions, labeled by termination reason.",
		}, []string{"reason"}),
	}
}
