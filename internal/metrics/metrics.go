// Package metrics is the process-wide, strictly observable counter/gauge/
// histogram set. No control-flow decision anywhere in the engine depends on
// a value read back from here.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every metric this worker publishes under one namespace.
type Registry struct {
	EmbeddingsTotal               prometheus.Counter
	EmbeddingsErrorsTotal         *prometheus.CounterVec // kind
	RateLimitsTotal               *prometheus.CounterVec // provider
	CacheHitsTotal                prometheus.Counter
	CacheMissesTotal              prometheus.Counter
	RetriesTotal                  *prometheus.CounterVec // provider, kind
	PoolConnectionErrorsTotal     prometheus.Counter
	PoolHealthCheckFailuresTotal  prometheus.Counter

	ReposPending            prometheus.Gauge
	CircuitBreakerState     *prometheus.GaugeVec // provider
	PoolConnectionsActive   prometheus.Gauge
	PoolConnectionsIdle     prometheus.Gauge
	PoolConnectionsWaiting  prometheus.Gauge

	EmbeddingDurationSeconds *prometheus.HistogramVec // provider
}

// NewRegistry constructs every metric under the given namespace and
// registers them with the default Prometheus registry via promauto.
func NewRegistry(namespace string) *Registry {
	return &Registry{
		EmbeddingsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embeddings_total",
			Help:      "Total number of embeddings successfully generated and written back.",
		}),
		EmbeddingsErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embeddings_errors_total",
			Help:      "Total number of embedding attempts that ended in a terminal error, by kind.",
		}, []string{"kind"}),
		RateLimitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limits_total",
			Help:      "Total number of locally rate-limited calls, by provider.",
		}, []string{"provider"}),
		CacheHitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of embedding cache hits.",
		}),
		CacheMissesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of embedding cache misses.",
		}),
		RetriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of retry attempts, by provider and error kind.",
		}, []string{"provider", "kind"}),
		PoolConnectionErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_connection_errors_total",
			Help:      "Total number of database pool connection errors.",
		}),
		PoolHealthCheckFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_health_check_failures_total",
			Help:      "Total number of failed database health probes.",
		}),
		ReposPending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "repos_pending",
			Help:      "Repositories last observed as needing embedding.",
		}),
		CircuitBreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per provider: 0=closed, 1=open, 2=half-open.",
		}, []string{"provider"}),
		PoolConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_connections_active",
			Help:      "Database connections currently checked out.",
		}),
		PoolConnectionsIdle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_connections_idle",
			Help:      "Database connections idle in the pool.",
		}),
		PoolConnectionsWaiting: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_connections_waiting",
			Help:      "Goroutines waiting for a pool checkout.",
		}),
		EmbeddingDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_duration_seconds",
			Help:      "Provider embedding call latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider"}),
	}
}

// BreakerStateValue maps a breaker state name to its gauge encoding.
func BreakerStateValue(state string) float64 {
	switch state {
	case "Open":
		return 1
	case "HalfOpen":
		return 2
	default:
		return 0
	}
}
