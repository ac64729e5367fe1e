package service

import (
	"fmt"
	"strings"

	"github.com/moca-trajectory-engine/internal/domain"
)

const emptyNarrative = "No MoCA assessments on record. Trajectory metrics will be available after the first assessment."

// narrativeTemplates is keyed by tier and by whether the projection rises
// above the current rating.
var narrativeTemplates = map[domain.StatusTier]map[bool]string{
	domain.TierStable: {
		false: "Latest MoCA score of {score} is within the expected range. No progression is projected; continue routine screening.",
		true:  "Latest MoCA score of {score} is within the expected range, but the recent trend projects a rating of {future}. Consider a repeat assessment within six months.",
	},
	domain.TierMonitor: {
		false: "Latest MoCA score of {score} is consistent with mild impairment (rating {current}). The trajectory is flat; reassess in six months.",
		true:  "Latest MoCA score of {score} is consistent with mild impairment (rating {current}) with projected progression to {future}. Schedule follow-up within three months.",
	},
	domain.TierCritical: {
		false: "Latest MoCA score of {score} indicates significant impairment (rating {current}). Specialist review is recommended.",
		true:  "Latest MoCA score of {score} indicates significant impairment (rating {current}) with projected progression to {future} and a decline of {decline} points since the previous visit. Urgent specialist review is recommended.",
	},
}

// Narrate renders the clinical summary for a computed trajectory.
func Narrate(t domain.Trajectory, latestScore int) string {
	byTrend, ok := narrativeTemplates[t.StatusTier]
	if !ok {
		return ""
	}
	tmpl := byTrend[t.FutureRating > t.CurrentRating]

	return strings.NewReplacer(
		"{score}", fmt.Sprintf("%d", latestScore),
		"{current}", fmt.Sprintf("%.1f", t.CurrentRating),
		"{future}", fmt.Sprintf("%.1f", t.FutureRating),
		"{decline}", fmt.Sprintf("%d", t.DeclineRate),
	).Replace(tmpl)
}
