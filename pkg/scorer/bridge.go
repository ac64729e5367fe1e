package scorer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moca-trajectory-engine/internal/domain"
	"github.com/moca-trajectory-engine/internal/trajectory"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Bridge implements domain.Scorer on top of an external scoring process. Each
// Score call is a single round trip; there is no pipelining or retry.
type Bridge struct {
	runner  Runner
	cache   PredictionCache
	limiter *rate.Limiter
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	metrics *Metrics
	logger  *logrus.Logger
}

// BridgeOptions holds the optional collaborators of a Bridge.
type BridgeOptions struct {
	Cache   PredictionCache
	Metrics *Metrics
	Logger  *logrus.Logger
}

// NewBridge creates a bridge around runner guarded by a rate limiter and a
// circuit breaker configured from config.
func NewBridge(config domain.ScorerConfig, runner Runner, opts BridgeOptions) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	limit := rate.Inf
	if config.SpawnsPerSecond > 0 {
		limit = rate.Limit(config.SpawnsPerSecond)
	}
	burst := config.SpawnBurst
	if burst <= 0 {
		burst = 1
	}

	b := &Bridge{
		runner:  runner,
		cache:   opts.Cache,
		limiter: rate.NewLimiter(limit, burst),
		timeout: config.Timeout,
		metrics: opts.Metrics,
		logger:  logger,
	}

	cb := config.CircuitBreaker
	b.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "moca-scorer",
		MaxRequests: cb.MaxRequests,
		Interval:    cb.Interval,
		Timeout:     cb.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cb.MinRequests && failureRatio >= cb.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			b.metrics.SetBreakerState(float64(to))
			b.logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Scorer circuit breaker changed state")
		},
	})

	return b
}

// Score predicts every assessment of patient. On success each assessment's
// PredictedRating is set from the record computed for it and the records are
// returned in chronological order. On failure the patient is left untouched.
func (b *Bridge) Score(ctx context.Context, patient *domain.Patient) ([]domain.PredictionRecord, error) {
	if len(patient.Assessments) == 0 {
		return []domain.PredictionRecord{}, nil
	}

	sorted, order := trajectory.SortChronologically(patient.Assessments)
	inputs, err := trajectory.BuildInputs(patient, sorted)
	if err != nil {
		return nil, fmt.Errorf("failed to build scoring inputs: %w", err)
	}

	payload, err := EncodeInputs(inputs)
	if err != nil {
		return nil, err
	}

	key := CacheKey(payload)
	if b.cache != nil {
		if records, ok := b.cache.Get(ctx, key); ok && len(records) == len(inputs) {
			trajectory.WriteBack(patient, order, records)
			return records, nil
		}
	}

	// The timeout covers both the spawn limiter and the process run.
	callCtx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := b.limiter.Wait(callCtx); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("scorer rate limit wait cancelled: %w", ctx.Err())
		}
		timeoutErr := &domain.ScoringTimeoutError{Timeout: b.timeout}
		b.metrics.ObserveRun(outcomeOf(timeoutErr), time.Since(start))
		return nil, timeoutErr
	}

	result, err := b.breaker.Execute(func() (interface{}, error) {
		out, err := b.runner.Run(callCtx, payload)
		if err != nil {
			return nil, err
		}
		return DecodeOutput(out, inputs)
	})
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", domain.ErrScorerUnavailable, err)
		}
		b.metrics.ObserveRun(outcomeOf(err), elapsed)
		return nil, err
	}
	b.metrics.ObserveRun("success", elapsed)

	records := result.([]domain.PredictionRecord)
	if b.cache != nil {
		b.cache.Set(ctx, key, records)
	}

	trajectory.WriteBack(patient, order, records)

	b.logger.WithFields(logrus.Fields{
		"patient_id":  patient.ID,
		"assessments": len(records),
		"duration_ms": elapsed.Milliseconds(),
	}).Debug("External scorer completed")

	return records, nil
}

// State returns the circuit breaker state
func (b *Bridge) State() gobreaker.State {
	return b.breaker.State()
}

func outcomeOf(err error) string {
	var procErr *domain.ScoringProcessError
	var timeoutErr *domain.ScoringTimeoutError
	switch {
	case errors.Is(err, domain.ErrScorerUnavailable):
		return "unavailable"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &procErr):
		return "process_error"
	default:
		return "error"
	}
}
