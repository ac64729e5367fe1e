package repository

import (
	"encoding/json"
	"fmt"

	"github.com/moca-trajectory-engine/internal/domain"
)

// encodeDocuments serializes the nested parts of a patient stored as JSON columns.
func encodeDocuments(p *domain.Patient) (assessments, trajectory []byte, err error) {
	list := p.Assessments
	if list == nil {
		list = []domain.Assessment{}
	}
	assessments, err = json.Marshal(list)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding assessments: %w", err)
	}
	trajectory, err = json.Marshal(p.Trajectory)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding trajectory: %w", err)
	}
	return assessments, trajectory, nil
}

func decodeDocuments(p *domain.Patient, assessments, trajectory []byte) error {
	p.Assessments = []domain.Assessment{}
	if len(assessments) > 0 {
		if err := json.Unmarshal(assessments, &p.Assessments); err != nil {
			return fmt.Errorf("decoding assessments: %w", err)
		}
	}
	if len(trajectory) > 0 {
		if err := json.Unmarshal(trajectory, &p.Trajectory); err != nil {
			return fmt.Errorf("decoding trajectory: %w", err)
		}
	}
	return nil
}
