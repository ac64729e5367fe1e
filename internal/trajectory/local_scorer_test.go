package trajectory

import (
	"context"
	"math"
	"testing"

	"github.com/moca-trajectory-engine/internal/domain"
)

func testPatient(assessments ...domain.Assessment) *domain.Patient {
	return &domain.Patient{
		ID:          "patient-1",
		Name:        "Test Patient",
		DateOfBirth: "1950-01-01",
		Assessments: assessments,
	}
}

func TestBuildInputs(t *testing.T) {
	p := testPatient(
		assessment("2020-01-01", 27),
		assessment("2020-01-31", 25),
	)

	inputs, err := BuildInputs(p, p.Assessments)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inputs) != 2 {
		t.Fatalf("expected 2 inputs, got %d", len(inputs))
	}

	if inputs[0].DaysToVisit != 0 {
		t.Errorf("first visit days = %v, expected 0", inputs[0].DaysToVisit)
	}
	if inputs[1].DaysToVisit != 30 {
		t.Errorf("second visit days = %v, expected 30", inputs[1].DaysToVisit)
	}
	if math.Abs(inputs[0].Age-70.0) > 0.01 {
		t.Errorf("age = %v, expected about 70", inputs[0].Age)
	}
	if inputs[1].TotalScore != 25 {
		t.Errorf("total score = %d, expected 25", inputs[1].TotalScore)
	}
}

func TestBuildInputsInvalidBirthDate(t *testing.T) {
	p := testPatient(assessment("2020-01-01", 27))
	p.DateOfBirth = "unknown"

	if _, err := BuildInputs(p, p.Assessments); err == nil {
		t.Fatal("expected error for unparseable date of birth")
	}
}

func TestPredict(t *testing.T) {
	inputs := []domain.ScoringInput{
		{Date: "2023-01-01", TotalScore: 22},
		{Date: "2023-06-01", TotalScore: 17},
	}

	records := Predict(inputs)

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	last := records[1]
	if last.CurrentRating != 1.0 {
		t.Errorf("current rating = %v, expected 1.0", last.CurrentRating)
	}
	if last.DeclineRate != 5 {
		t.Errorf("decline = %d, expected 5", last.DeclineRate)
	}
	if last.FutureRating == nil || *last.FutureRating != 1.5 {
		t.Errorf("future rating = %v, expected 1.5", last.FutureRating)
	}
	if last.VisitNumber != 2 {
		t.Errorf("visit number = %d, expected 2", last.VisitNumber)
	}
	if records[0].DeclineRate != 0 {
		t.Errorf("first record decline = %d, expected 0", records[0].DeclineRate)
	}
}

func TestLocalScorerWritesBackToOriginalPositions(t *testing.T) {
	p := testPatient(
		assessment("2024-03-01", 12),
		assessment("2023-01-01", 28),
		assessment("2023-07-01", 24),
	)

	records, err := NewLocalScorer().Score(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	want := []float64{2.0, 0.0, 0.5}
	for i, a := range p.Assessments {
		if a.PredictedRating == nil {
			t.Fatalf("assessment %d has no predicted rating", i)
		}
		if *a.PredictedRating != want[i] {
			t.Errorf("assessment %d predicted %v, expected %v", i, *a.PredictedRating, want[i])
		}
	}

	last := records[len(records)-1]
	if last.DeclineRate != 12 {
		t.Errorf("decline = %d, expected 12", last.DeclineRate)
	}
}

func TestLocalScorerEmptyPatient(t *testing.T) {
	records, err := NewLocalScorer().Score(context.Background(), testPatient())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestLocalScorerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewLocalScorer().Score(ctx, testPatient(assessment("2023-01-01", 20))); err == nil {
		t.Fatal("expected context error")
	}
}
