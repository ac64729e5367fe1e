// Package scorer talks to the external scoring process. A patient's assessments
// are sent as a single JSON array on stdin and the process answers with one
// prediction per assessment on stdout.
package scorer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/moca-trajectory-engine/internal/domain"
)

// wireRecord mirrors the scorer output. decline_rate is decoded as a float
// because model-backed scorers emit it as one.
type wireRecord struct {
	Date              string   `json:"date"`
	CurrentCDR        float64  `json:"current_cdr"`
	CurrentConfidence float64  `json:"current_confidence"`
	FutureCDR         *float64 `json:"future_cdr"`
	FutureConfidence  *float64 `json:"future_confidence"`
	DeclineRate       float64  `json:"decline_rate"`
	VisitNumber       int      `json:"visit_number"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// EncodeInputs serializes scoring inputs into the request payload.
func EncodeInputs(inputs []domain.ScoringInput) ([]byte, error) {
	payload, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scoring inputs: %w", err)
	}
	return payload, nil
}

// DecodeInputs parses a request payload. It is used by scorer implementations.
func DecodeInputs(data []byte) ([]domain.ScoringInput, error) {
	var inputs []domain.ScoringInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("failed to decode scoring inputs: %w", err)
	}
	return inputs, nil
}

// EncodeRecords serializes predictions into the response payload.
func EncodeRecords(records []domain.PredictionRecord) ([]byte, error) {
	out, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode predictions: %w", err)
	}
	return out, nil
}

// EncodeError serializes an explicit failure response.
func EncodeError(msg string) []byte {
	out, _ := json.Marshal(errorPayload{Error: msg})
	return out
}

// DecodeOutput parses the scorer's stdout. The result must hold one record per
// input, in input order with matching dates; an {"error": ...} object is
// reported as a ScoringProcessError.
func DecodeOutput(data []byte, inputs []domain.ScoringInput) ([]domain.PredictionRecord, error) {
	expected := len(inputs)
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &domain.ScoringProcessError{Reason: "empty output"}
	}

	if trimmed[0] == '{' {
		var payload errorPayload
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return nil, &domain.ScoringProcessError{Reason: "malformed output", Err: err}
		}
		if payload.Error == "" {
			return nil, &domain.ScoringProcessError{Reason: "unexpected object in output"}
		}
		return nil, &domain.ScoringProcessError{Reason: payload.Error}
	}

	var wire []wireRecord
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, &domain.ScoringProcessError{Reason: "malformed output", Err: err}
	}
	if len(wire) != expected {
		return nil, &domain.ScoringProcessError{
			Reason: fmt.Sprintf("expected %d predictions, got %d", expected, len(wire)),
		}
	}

	records := make([]domain.PredictionRecord, len(wire))
	for i, w := range wire {
		if w.Date != inputs[i].Date {
			return nil, &domain.ScoringProcessError{
				Reason: fmt.Sprintf("misaligned output: record %d has date %q, expected %q", i, w.Date, inputs[i].Date),
			}
		}
		records[i] = domain.PredictionRecord{
			Date:              w.Date,
			CurrentRating:     w.CurrentCDR,
			CurrentConfidence: w.CurrentConfidence,
			FutureRating:      w.FutureCDR,
			FutureConfidence:  w.FutureConfidence,
			DeclineRate:       int(math.Round(w.DeclineRate)),
			VisitNumber:       w.VisitNumber,
		}
	}
	return records, nil
}
