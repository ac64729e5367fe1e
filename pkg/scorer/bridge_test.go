package scorer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/moca-trajectory-engine/internal/domain"
	"github.com/moca-trajectory-engine/internal/trajectory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScorerConfig() domain.ScorerConfig {
	return domain.ScorerConfig{
		Mode:            domain.ScoringModeExternal,
		Timeout:         5 * time.Second,
		SpawnsPerSecond: 100,
		SpawnBurst:      10,
		CircuitBreaker: domain.CircuitBreakerConfig{
			MaxRequests:  1,
			Interval:     time.Minute,
			Timeout:      time.Minute,
			MinRequests:  2,
			FailureRatio: 0.5,
		},
	}
}

func outOfOrderPatient() *domain.Patient {
	return &domain.Patient{
		ID:          "p-1",
		Name:        "Test",
		DateOfBirth: "1948-02-10",
		Assessments: []domain.Assessment{
			{Date: "2024-03-01", TotalScore: 12},
			{Date: "2023-01-01", TotalScore: 28},
			{Date: "2023-07-01", TotalScore: 24},
		},
	}
}

func TestBridge_ScoreWritesBackToOriginalPositions(t *testing.T) {
	bridge := NewBridge(testScorerConfig(), helperRunner("ok", 5*time.Second), BridgeOptions{})
	patient := outOfOrderPatient()

	records, err := bridge.Score(context.Background(), patient)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "2023-01-01", records[0].Date)
	assert.Equal(t, "2024-03-01", records[2].Date)
	assert.Equal(t, 12, records[2].DeclineRate)

	want := []float64{2.0, 0.0, 0.5}
	for i, a := range patient.Assessments {
		require.NotNil(t, a.PredictedRating, "assessment %d", i)
		assert.Equal(t, want[i], *a.PredictedRating, "assessment %d", i)
	}
}

func TestBridge_MatchesLocalScorer(t *testing.T) {
	bridge := NewBridge(testScorerConfig(), helperRunner("ok", 5*time.Second), BridgeOptions{})

	external := outOfOrderPatient()
	local := outOfOrderPatient()

	bridgeRecords, err := bridge.Score(context.Background(), external)
	require.NoError(t, err)
	localRecords, err := trajectory.NewLocalScorer().Score(context.Background(), local)
	require.NoError(t, err)

	assert.Equal(t, localRecords, bridgeRecords)
	assert.Equal(t, local.Assessments, external.Assessments)
}

func TestBridge_EmptyPatientNeverStartsProcess(t *testing.T) {
	var calls int32
	runner := RunnerFunc(func(ctx context.Context, payload []byte) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("should not run")
	})
	bridge := NewBridge(testScorerConfig(), runner, BridgeOptions{})

	records, err := bridge.Score(context.Background(), &domain.Patient{ID: "empty"})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestBridge_FailuresLeavePatientUntouched(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		timeout time.Duration
		check   func(t *testing.T, err error)
	}{
		{"explicit error", "error", 5 * time.Second, func(t *testing.T, err error) {
			var procErr *domain.ScoringProcessError
			require.True(t, errors.As(err, &procErr))
			assert.Contains(t, err.Error(), "model not loaded")
		}},
		{"non-zero exit", "exit", 5 * time.Second, func(t *testing.T, err error) {
			var procErr *domain.ScoringProcessError
			require.True(t, errors.As(err, &procErr))
			assert.Equal(t, 3, procErr.ExitCode)
		}},
		{"wrong length", "short", 5 * time.Second, func(t *testing.T, err error) {
			assert.Contains(t, err.Error(), "expected 3 predictions")
		}},
		{"timeout", "sleep", 200 * time.Millisecond, func(t *testing.T, err error) {
			var timeoutErr *domain.ScoringTimeoutError
			require.True(t, errors.As(err, &timeoutErr))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge := NewBridge(testScorerConfig(), helperRunner(tt.mode, tt.timeout), BridgeOptions{})
			patient := outOfOrderPatient()

			records, err := bridge.Score(context.Background(), patient)
			require.Error(t, err)
			assert.Nil(t, records)
			assert.True(t, domain.IsScoringFailure(err))
			tt.check(t, err)

			for _, a := range patient.Assessments {
				assert.Nil(t, a.PredictedRating)
			}
		})
	}
}

func TestBridge_CircuitOpensAfterFailures(t *testing.T) {
	var calls int32
	runner := RunnerFunc(func(ctx context.Context, payload []byte) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return nil, &domain.ScoringProcessError{ExitCode: 1, Reason: "non-zero exit"}
	})
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	bridge := NewBridge(testScorerConfig(), runner, BridgeOptions{Metrics: metrics})

	for i := 0; i < 2; i++ {
		_, err := bridge.Score(context.Background(), outOfOrderPatient())
		require.Error(t, err)
		assert.True(t, domain.IsScoringFailure(err))
	}
	assert.Equal(t, gobreaker.StateOpen, bridge.State())

	_, err := bridge.Score(context.Background(), outOfOrderPatient())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrScorerUnavailable))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Runs.WithLabelValues("process_error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Runs.WithLabelValues("unavailable")))
	assert.Equal(t, float64(gobreaker.StateOpen), testutil.ToFloat64(metrics.BreakerState))
}

func TestBridge_CacheServesIdenticalHistory(t *testing.T) {
	var calls int32
	runner := RunnerFunc(func(ctx context.Context, payload []byte) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		records, err := DecodeInputs(payload)
		if err != nil {
			return nil, err
		}
		return EncodeRecords(trajectory.Predict(records))
	})
	cache := NewTieredCache(NewMemoryCache(10, time.Minute), nil, nil)
	bridge := NewBridge(testScorerConfig(), runner, BridgeOptions{Cache: cache})

	first := outOfOrderPatient()
	_, err := bridge.Score(context.Background(), first)
	require.NoError(t, err)

	second := outOfOrderPatient()
	records, err := bridge.Score(context.Background(), second)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.NotNil(t, second.Assessments[0].PredictedRating)
	assert.Equal(t, 2.0, *second.Assessments[0].PredictedRating)

	second.Assessments[0].TotalScore = 11
	_, err = bridge.Score(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestBridge_InvalidBirthDate(t *testing.T) {
	bridge := NewBridge(testScorerConfig(), helperRunner("ok", time.Second), BridgeOptions{})
	patient := outOfOrderPatient()
	patient.DateOfBirth = ""

	_, err := bridge.Score(context.Background(), patient)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrScorerUnavailable))
}

func referenceRunner(calls *int32) RunnerFunc {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		atomic.AddInt32(calls, 1)
		inputs, err := DecodeInputs(payload)
		if err != nil {
			return nil, err
		}
		return EncodeRecords(trajectory.Predict(inputs))
	}
}

func TestBridge_SpawnLimiterWaitIsBoundedByTimeout(t *testing.T) {
	config := testScorerConfig()
	config.Timeout = 100 * time.Millisecond
	config.SpawnsPerSecond = 0.5
	config.SpawnBurst = 1

	var calls int32
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	bridge := NewBridge(config, referenceRunner(&calls), BridgeOptions{Metrics: metrics})

	_, err := bridge.Score(context.Background(), outOfOrderPatient())
	require.NoError(t, err)

	patient := outOfOrderPatient()
	start := time.Now()
	_, err = bridge.Score(context.Background(), patient)
	elapsed := time.Since(start)

	require.Error(t, err)
	var timeoutErr *domain.ScoringTimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Runs.WithLabelValues("timeout")))
	for _, a := range patient.Assessments {
		assert.Nil(t, a.PredictedRating)
	}
}

func TestBridge_RunUsesCallDeadline(t *testing.T) {
	config := testScorerConfig()
	config.Timeout = 100 * time.Millisecond

	runner := RunnerFunc(func(ctx context.Context, payload []byte) ([]byte, error) {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(config.Timeout), deadline, config.Timeout)
		return nil, &domain.ScoringTimeoutError{Timeout: config.Timeout}
	})
	bridge := NewBridge(config, runner, BridgeOptions{})

	_, err := bridge.Score(context.Background(), outOfOrderPatient())
	assert.True(t, domain.IsScoringFailure(err))
}

func TestBridge_ReorderedOutputIsRejected(t *testing.T) {
	runner := RunnerFunc(func(ctx context.Context, payload []byte) ([]byte, error) {
		inputs, err := DecodeInputs(payload)
		if err != nil {
			return nil, err
		}
		records := trajectory.Predict(inputs)
		for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
			records[i], records[j] = records[j], records[i]
		}
		return EncodeRecords(records)
	})
	bridge := NewBridge(testScorerConfig(), runner, BridgeOptions{})
	patient := outOfOrderPatient()

	_, err := bridge.Score(context.Background(), patient)
	require.Error(t, err)
	var procErr *domain.ScoringProcessError
	require.True(t, errors.As(err, &procErr))
	assert.Contains(t, procErr.Reason, "misaligned output")
	for _, a := range patient.Assessments {
		assert.Nil(t, a.PredictedRating)
	}
}
