package trajectory

import (
	"fmt"

	"github.com/moca-trajectory-engine/internal/domain"
)

const (
	daysPerYear = 365.25
	hoursPerDay = 24.0
)

// BuildInputs converts chronologically sorted assessments into scoring inputs.
// Age is measured from the patient's date of birth using a 365.25-day year and
// days_to_visit from the first visit in the set.
func BuildInputs(patient *domain.Patient, sorted []domain.Assessment) ([]domain.ScoringInput, error) {
	if len(sorted) == 0 {
		return []domain.ScoringInput{}, nil
	}

	dob, err := patient.BirthTime()
	if err != nil {
		return nil, fmt.Errorf("failed to derive age for patient %s: %w", patient.ID, err)
	}

	first, err := sorted[0].VisitTime()
	if err != nil {
		return nil, fmt.Errorf("failed to parse first visit date: %w", err)
	}

	inputs := make([]domain.ScoringInput, 0, len(sorted))
	for i, a := range sorted {
		visit, err := a.VisitTime()
		if err != nil {
			return nil, fmt.Errorf("failed to parse visit %d date: %w", i, err)
		}
		days := visit.Sub(first).Hours() / hoursPerDay
		inputs = append(inputs, domain.ScoringInput{
			Date:        a.Date,
			Age:         visit.Sub(dob).Hours() / hoursPerDay / daysPerYear,
			DaysToVisit: days,
			TotalScore:  a.TotalScore,
			Subscores:   a.Subscores.ToWire(),
		})
	}
	return inputs, nil
}
