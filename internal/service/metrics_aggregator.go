package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moca-trajectory-engine/internal/domain"
	"github.com/moca-trajectory-engine/internal/logging"
	"github.com/moca-trajectory-engine/internal/trajectory"
)

// Outcome reports how a recompute went. Err is set when the trajectory was
// left at its previous values.
type Outcome struct {
	Source domain.ScoringSource
	Err    error
}

// Stale reports whether the previous trajectory was kept.
func (o Outcome) Stale() bool {
	return o.Source == domain.SourceStale
}

// MetricsAggregator is the only writer of a patient's Trajectory. It never
// returns an error: scoring failures keep the last computed values.
type MetricsAggregator struct {
	mode     domain.ScoringMode
	external domain.Scorer
	local    domain.Scorer
	logger   *logrus.Logger
	now      func() time.Time
}

// NewMetricsAggregator creates an aggregator. external may be nil, in which
// case every recompute is local.
func NewMetricsAggregator(mode domain.ScoringMode, external domain.Scorer, logger *logrus.Logger) *MetricsAggregator {
	return &MetricsAggregator{
		mode:     mode,
		external: external,
		local:    trajectory.NewLocalScorer(),
		logger:   logger,
		now:      time.Now,
	}
}

// Recompute rebuilds patient.Trajectory from the full assessment history.
func (a *MetricsAggregator) Recompute(ctx context.Context, patient *domain.Patient) Outcome {
	log := logging.FromContext(ctx, a.logger).WithField("patient_id", patient.ID)

	if len(patient.Assessments) == 0 {
		t := domain.NeutralTrajectory()
		t.Narrative = emptyNarrative
		t.ComputedAt = a.now().UTC()
		patient.Trajectory = t
		return Outcome{Source: domain.SourceNone}
	}

	records, source, err := a.score(ctx, patient, log)
	if err != nil {
		log.WithError(err).Error("Trajectory recompute failed, keeping previous values")
		return Outcome{Source: domain.SourceStale, Err: err}
	}
	if len(records) != len(patient.Assessments) {
		err := &domain.ScoringProcessError{Reason: "prediction count does not match assessments"}
		log.WithError(err).Error("Trajectory recompute failed, keeping previous values")
		return Outcome{Source: domain.SourceStale, Err: err}
	}

	sorted, _ := trajectory.SortChronologically(patient.Assessments)
	latestScore := sorted[len(sorted)-1].TotalScore
	patient.Trajectory = a.build(records[len(records)-1], latestScore, source)

	log.WithFields(logrus.Fields{
		"source":         source,
		"status_tier":    patient.Trajectory.StatusTier,
		"current_rating": patient.Trajectory.CurrentRating,
		"future_rating":  patient.Trajectory.FutureRating,
	}).Debug("Trajectory recomputed")

	return Outcome{Source: source}
}

func (a *MetricsAggregator) score(ctx context.Context, patient *domain.Patient, log *logrus.Entry) ([]domain.PredictionRecord, domain.ScoringSource, error) {
	if a.mode == domain.ScoringModeExternal && a.external != nil {
		records, err := a.external.Score(ctx, patient)
		if err == nil {
			return records, domain.SourceExternal, nil
		}
		if !errors.Is(err, domain.ErrScorerUnavailable) {
			return nil, domain.SourceStale, err
		}
		log.WithError(err).Warn("External scorer unavailable, using local scoring")
	}

	records, err := a.local.Score(ctx, patient)
	if err != nil {
		return nil, domain.SourceStale, err
	}
	return records, domain.SourceLocal, nil
}

// build derives the aggregate from the chronologically latest record.
func (a *MetricsAggregator) build(latest domain.PredictionRecord, latestScore int, source domain.ScoringSource) domain.Trajectory {
	current := math.Max(0, math.Min(domain.MaxRating, latest.CurrentRating))
	future := current
	if latest.FutureRating != nil {
		future = *latest.FutureRating
	}
	future = math.Min(domain.MaxRating, math.Max(future, current))

	_, label := trajectory.Confidence(latestScore)

	t := domain.Trajectory{
		CurrentRating:   current,
		FutureRating:    future,
		Confidence:      latest.CurrentConfidence,
		ConfidenceLabel: label,
		DeclineRate:     latest.DeclineRate,
		StatusTier:      trajectory.Tier(current),
		Source:          source,
		ComputedAt:      a.now().UTC(),
	}
	t.Narrative = Narrate(t, latestScore)
	return t
}
