package scorer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for scorer round trips.
type Metrics struct {
	// Runs by outcome: success, process_error, timeout, unavailable, error
	Runs *prometheus.CounterVec

	RunLatency prometheus.Histogram

	// Cache lookups by tier
	CacheHits   *prometheus.CounterVec
	CacheMisses prometheus.Counter

	// 0 closed, 1 half-open, 2 open
	BreakerState prometheus.Gauge
}

// NewMetrics registers scorer metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moca_scorer_runs_total",
			Help: "External scorer invocations by outcome",
		}, []string{"outcome"}),

		RunLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "moca_scorer_run_duration_seconds",
			Help:    "Duration of external scorer round trips",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moca_scorer_cache_hits_total",
			Help: "Prediction cache hits by tier",
		}, []string{"tier"}),

		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "moca_scorer_cache_misses_total",
			Help: "Prediction cache misses",
		}),

		BreakerState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "moca_scorer_circuit_breaker_state",
			Help: "Scorer circuit breaker state (0 closed, 1 half-open, 2 open)",
		}),
	}
}

// ObserveRun records one scorer invocation.
func (m *Metrics) ObserveRun(outcome string, d time.Duration) {
	if m != nil {
		m.Runs.WithLabelValues(outcome).Inc()
		m.RunLatency.Observe(d.Seconds())
	}
}

// IncCacheHit records a cache hit in tier.
func (m *Metrics) IncCacheHit(tier string) {
	if m != nil {
		m.CacheHits.WithLabelValues(tier).Inc()
	}
}

// IncCacheMiss records a cache miss.
func (m *Metrics) IncCacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

// SetBreakerState records the breaker state.
func (m *Metrics) SetBreakerState(state float64) {
	if m != nil {
		m.BreakerState.Set(state)
	}
}
