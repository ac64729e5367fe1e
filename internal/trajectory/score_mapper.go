// Package trajectory holds the clinical rules that turn MoCA scores into CDR-like
// ratings and project them forward. Both the in-process scorer and the reference
// scorer process are built on these functions, so the two paths cannot drift.
package trajectory

import "github.com/moca-trajectory-engine/internal/domain"

// Rating tier boundaries on the MoCA total.
const (
	severeBelow   = 15
	moderateBelow = 20
	mildBelow     = 26
)

// Confidence tier boundaries. These deliberately differ from the rating tiers.
const (
	lowConfidenceMax      = 18
	moderateConfidenceMax = 25
)

// Numeric confidence reported for each band.
const (
	LowConfidence      = 0.60
	ModerateConfidence = 0.75
	HighConfidence     = 0.90
)

// Rating maps a MoCA total onto the CDR-like severity scale. Scores outside 0–30
// fall into the lowest or highest tier.
func Rating(score int) float64 {
	switch {
	case score < severeBelow:
		return 2.0
	case score < moderateBelow:
		return 1.0
	case score < mildBelow:
		return 0.5
	default:
		return 0.0
	}
}

// Confidence returns the numeric confidence and its band for a MoCA total.
func Confidence(score int) (float64, domain.ConfidenceLabel) {
	switch {
	case score <= lowConfidenceMax:
		return LowConfidence, domain.ConfidenceLow
	case score <= moderateConfidenceMax:
		return ModerateConfidence, domain.ConfidenceModerate
	default:
		return HighConfidence, domain.ConfidenceHigh
	}
}

// Tier classifies a current rating for triage.
func Tier(currentRating float64) domain.StatusTier {
	switch {
	case currentRating >= 1.0:
		return domain.TierCritical
	case currentRating > 0:
		return domain.TierMonitor
	default:
		return domain.TierStable
	}
}
