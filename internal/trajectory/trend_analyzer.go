package trajectory

import (
	"math"
	"sort"
	"time"

	"github.com/moca-trajectory-engine/internal/domain"
)

// Projection rule parameters.
const (
	declineThreshold   = 2
	projectionStep     = 0.5
	projectionScoreCut = 20
)

// SortChronologically returns the assessments ordered by visit date together with
// the original index of each sorted element. Visits on the same date keep their
// insertion order. Unparseable dates sort first.
func SortChronologically(assessments []domain.Assessment) ([]domain.Assessment, []int) {
	order := make([]int, len(assessments))
	times := make([]time.Time, len(assessments))
	for i, a := range assessments {
		order[i] = i
		if t, err := a.VisitTime(); err == nil {
			times[i] = t
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return times[order[i]].Before(times[order[j]])
	})

	sorted := make([]domain.Assessment, len(order))
	for i, idx := range order {
		sorted[i] = assessments[idx]
	}
	return sorted, order
}

// Decline is the score drop between the two chronologically latest visits.
// Fewer than two visits yields 0.
func Decline(sorted []domain.Assessment) int {
	n := len(sorted)
	if n < 2 {
		return 0
	}
	return sorted[n-2].TotalScore - sorted[n-1].TotalScore
}

// Project returns the expected future rating. It never decreases the current
// rating and never exceeds domain.MaxRating.
func Project(currentRating float64, decline int, latestScore int) float64 {
	if decline > declineThreshold || latestScore < projectionScoreCut {
		return math.Min(domain.MaxRating, currentRating+projectionStep)
	}
	return currentRating
}
