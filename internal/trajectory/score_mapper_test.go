package trajectory

import (
	"testing"

	"github.com/moca-trajectory-engine/internal/domain"
)

func TestRatingBoundaries(t *testing.T) {
	tests := []struct {
		score    int
		expected float64
	}{
		{-3, 2.0},
		{0, 2.0},
		{14, 2.0},
		{15, 1.0},
		{19, 1.0},
		{20, 0.5},
		{25, 0.5},
		{26, 0.0},
		{30, 0.0},
		{31, 0.0},
	}

	for _, tt := range tests {
		if got := Rating(tt.score); got != tt.expected {
			t.Errorf("Rating(%d) = %v, expected %v", tt.score, got, tt.expected)
		}
	}
}

func TestRatingIsNonIncreasing(t *testing.T) {
	prev := Rating(domain.MinTotalScore)
	for score := domain.MinTotalScore + 1; score <= domain.MaxTotalScore; score++ {
		r := Rating(score)
		if r > prev {
			t.Fatalf("Rating(%d)=%v exceeds Rating(%d)=%v", score, r, score-1, prev)
		}
		prev = r
	}
}

func TestConfidenceBands(t *testing.T) {
	tests := []struct {
		score int
		value float64
		label domain.ConfidenceLabel
	}{
		{0, 0.60, domain.ConfidenceLow},
		{18, 0.60, domain.ConfidenceLow},
		{19, 0.75, domain.ConfidenceModerate},
		{25, 0.75, domain.ConfidenceModerate},
		{26, 0.90, domain.ConfidenceHigh},
		{30, 0.90, domain.ConfidenceHigh},
	}

	for _, tt := range tests {
		value, label := Confidence(tt.score)
		if value != tt.value || label != tt.label {
			t.Errorf("Confidence(%d) = (%v, %s), expected (%v, %s)", tt.score, value, label, tt.value, tt.label)
		}
	}
}

func TestTier(t *testing.T) {
	tests := []struct {
		rating   float64
		expected domain.StatusTier
	}{
		{0.0, domain.TierStable},
		{0.5, domain.TierMonitor},
		{0.99, domain.TierMonitor},
		{1.0, domain.TierCritical},
		{2.0, domain.TierCritical},
		{3.0, domain.TierCritical},
	}

	for _, tt := range tests {
		if got := Tier(tt.rating); got != tt.expected {
			t.Errorf("Tier(%v) = %s, expected %s", tt.rating, got, tt.expected)
		}
	}
}
