package scorer

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/moca-trajectory-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeInputsWireNames(t *testing.T) {
	payload, err := EncodeInputs([]domain.ScoringInput{{
		Date:        "2023-01-01",
		Age:         72.5,
		DaysToVisit: 0,
		TotalScore:  24,
		Subscores:   domain.Subscores{Recall: 3}.ToWire(),
	}})
	require.NoError(t, err)

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Len(t, decoded, 1)

	for _, field := range []string{"date", "age", "days_to_visit", "totalScore", "subscores"} {
		assert.Contains(t, decoded[0], field)
	}
	subscores := decoded[0]["subscores"].(map[string]interface{})
	assert.Equal(t, float64(3), subscores["memory_recall"])
}

func inputsOn(dates ...string) []domain.ScoringInput {
	inputs := make([]domain.ScoringInput, len(dates))
	for i, d := range dates {
		inputs[i] = domain.ScoringInput{Date: d, TotalScore: 20}
	}
	return inputs
}

func TestDecodeOutput(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		inputs  []domain.ScoringInput
		wantErr string
	}{
		{"empty", "  \n", inputsOn("2023-01-01"), "empty output"},
		{"explicit error", `{"error": "model not loaded"}`, inputsOn("2023-01-01"), "model not loaded"},
		{"object without error", `{"result": []}`, inputsOn("2023-01-01"), "unexpected object"},
		{"malformed", `[{"date": 1`, inputsOn("2023-01-01"), "malformed output"},
		{"length mismatch", `[{"date":"2023-01-01","current_cdr":0.5}]`, inputsOn("2023-01-01", "2023-06-01"), "expected 2 predictions, got 1"},
		{"reordered records", `[{"date":"2023-06-01","current_cdr":1.0},{"date":"2023-01-01","current_cdr":0.5}]`, inputsOn("2023-01-01", "2023-06-01"), "misaligned output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeOutput([]byte(tt.output), tt.inputs)
			require.Error(t, err)

			var procErr *domain.ScoringProcessError
			require.True(t, errors.As(err, &procErr))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeOutputFields(t *testing.T) {
	out := `[
		{"date":"2023-01-01","current_cdr":0.5,"current_confidence":0.75,"future_cdr":null,"future_confidence":null,"decline_rate":0,"visit_number":1},
		{"date":"2023-06-01","current_cdr":1.0,"current_confidence":0.6,"future_cdr":1.5,"future_confidence":0.55,"decline_rate":4.6,"visit_number":2}
	]`

	records, err := DecodeOutput([]byte(out), inputsOn("2023-01-01", "2023-06-01"))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Nil(t, records[0].FutureRating)
	assert.Equal(t, 1.0, records[1].CurrentRating)
	require.NotNil(t, records[1].FutureRating)
	assert.Equal(t, 1.5, *records[1].FutureRating)
	assert.Equal(t, 5, records[1].DeclineRate)
	assert.Equal(t, 2, records[1].VisitNumber)
}

func TestServeReference(t *testing.T) {
	inputs := []domain.ScoringInput{
		{Date: "2023-01-01", TotalScore: 22},
		{Date: "2023-06-01", TotalScore: 17},
	}
	payload, err := EncodeInputs(inputs)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, ServeReference(bytes.NewReader(payload), &out))

	records, err := DecodeOutput(out.Bytes(), inputs)
	require.NoError(t, err)
	assert.Equal(t, 1.0, records[1].CurrentRating)
	assert.Equal(t, 5, records[1].DeclineRate)
	require.NotNil(t, records[1].FutureRating)
	assert.Equal(t, 1.5, *records[1].FutureRating)
}

func TestServeReferenceMalformedInput(t *testing.T) {
	var out bytes.Buffer
	err := ServeReference(strings.NewReader("not json"), &out)
	require.Error(t, err)

	_, decodeErr := DecodeOutput(out.Bytes(), inputsOn("2023-01-01"))
	require.Error(t, decodeErr)
	assert.Contains(t, decodeErr.Error(), "failed to decode scoring inputs")
}

func TestServeReferenceEmptyInput(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, ServeReference(strings.NewReader("  \n"), &out))
	assert.Zero(t, out.Len())
}
