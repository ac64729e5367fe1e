package trajectory

import (
	"context"

	"github.com/moca-trajectory-engine/internal/domain"
)

// Predict applies the rating and projection rules to each input in order. The
// decline on each record is measured against the preceding record, so the last
// record carries the decline between the two latest visits.
func Predict(inputs []domain.ScoringInput) []domain.PredictionRecord {
	records := make([]domain.PredictionRecord, len(inputs))
	for i, in := range inputs {
		current := Rating(in.TotalScore)
		confidence, _ := Confidence(in.TotalScore)

		decline := 0
		if i > 0 {
			decline = inputs[i-1].TotalScore - in.TotalScore
		}
		future := Project(current, decline, in.TotalScore)
		futureConfidence := confidence

		records[i] = domain.PredictionRecord{
			Date:              in.Date,
			CurrentRating:     current,
			CurrentConfidence: confidence,
			FutureRating:      &future,
			FutureConfidence:  &futureConfidence,
			DeclineRate:       decline,
			VisitNumber:       i + 1,
		}
	}
	return records
}

// LocalScorer computes predictions in-process. It is the fallback when the
// external scoring process is unavailable and the primary scorer in local mode.
type LocalScorer struct{}

// NewLocalScorer creates a new in-process scorer
func NewLocalScorer() *LocalScorer {
	return &LocalScorer{}
}

// Score sorts the patient's history, predicts every visit and writes each
// current rating back onto the originating assessment.
func (s *LocalScorer) Score(ctx context.Context, patient *domain.Patient) ([]domain.PredictionRecord, error) {
	if len(patient.Assessments) == 0 {
		return []domain.PredictionRecord{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sorted, order := SortChronologically(patient.Assessments)
	inputs, err := BuildInputs(patient, sorted)
	if err != nil {
		return nil, err
	}

	records := Predict(inputs)
	WriteBack(patient, order, records)
	return records, nil
}

// WriteBack stores each record's current rating on the assessment it was
// computed from. order maps sorted positions to original indices.
func WriteBack(patient *domain.Patient, order []int, records []domain.PredictionRecord) {
	for i, rec := range records {
		if i >= len(order) {
			return
		}
		idx := order[i]
		if idx < 0 || idx >= len(patient.Assessments) {
			continue
		}
		rating := rec.CurrentRating
		patient.Assessments[idx].PredictedRating = &rating
	}
}
