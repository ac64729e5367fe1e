package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/moca-trajectory-engine/internal/domain"
)

// Metrics provides observability for patient recomputes.
type Metrics struct {
	// Recomputes by scoring source: none, external, local, stale
	Recomputes *prometheus.CounterVec

	RecomputeLatency prometheus.Histogram

	TierTransitions *prometheus.CounterVec
}

// NewMetrics registers service metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Recomputes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moca_trajectory_recomputes_total",
			Help: "Trajectory recomputes by scoring source",
		}, []string{"source"}),

		RecomputeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "moca_trajectory_recompute_duration_seconds",
			Help:    "Duration of trajectory recomputes including scoring",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		TierTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moca_trajectory_tier_transitions_total",
			Help: "Status tier transitions by origin and destination tier",
		}, []string{"from", "to"}),
	}
}

// ObserveRecompute records one recompute.
func (m *Metrics) ObserveRecompute(source domain.ScoringSource, d time.Duration) {
	if m != nil {
		m.Recomputes.WithLabelValues(string(source)).Inc()
		m.RecomputeLatency.Observe(d.Seconds())
	}
}

// IncTierTransition records a tier change.
func (m *Metrics) IncTierTransition(from, to domain.StatusTier) {
	if m != nil {
		m.TierTransitions.WithLabelValues(string(from), string(to)).Inc()
	}
}
