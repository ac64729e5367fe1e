package domain

import (
	"errors"
	"testing"
)

func validAssessment() Assessment {
	return Assessment{
		Date:       "2024-03-10",
		TotalScore: 27,
		Subscores:  Subscores{VisuospatialExec: 5, Naming: 3, Attention: 6, Language: 2, Abstraction: 2, Recall: 3, Orientation: 6},
	}
}

func TestAssessmentValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Assessment)
		field  string
	}{
		{"Valid", func(a *Assessment) {}, ""},
		{"Bad date", func(a *Assessment) { a.Date = "March 10" }, "date"},
		{"Total too high", func(a *Assessment) { a.TotalScore = 31 }, "totalScore"},
		{"Total negative", func(a *Assessment) { a.TotalScore = -1 }, "totalScore"},
		{"Visuospatial over domain", func(a *Assessment) { a.Subscores.VisuospatialExec = 6 }, "subscores.visuospatialExec"},
		{"Naming over domain", func(a *Assessment) { a.Subscores.Naming = 4 }, "subscores.naming"},
		{"Attention over domain", func(a *Assessment) { a.Subscores.Attention = 7 }, "subscores.attention"},
		{"Language over domain", func(a *Assessment) { a.Subscores.Language = 4 }, "subscores.language"},
		{"Abstraction over domain", func(a *Assessment) { a.Subscores.Abstraction = 3 }, "subscores.abstraction"},
		{"Recall over domain", func(a *Assessment) { a.Subscores.Recall = 6 }, "subscores.recall"},
		{"Orientation negative", func(a *Assessment) { a.Subscores.Orientation = -1 }, "subscores.orientation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAssessment()
			tt.mutate(&a)
			err := a.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Expected valid assessment, got %v", err)
				}
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, vErr.Field)
			}
		})
	}
}

func TestAssessmentAdvisoriesDoNotBlock(t *testing.T) {
	a := validAssessment()
	a.TotalScore = 12 // subscores sum to 27

	if err := a.Validate(); err != nil {
		t.Fatalf("Sum mismatch must not fail validation: %v", err)
	}
	notes := a.Advisories()
	if len(notes) != 1 {
		t.Fatalf("Expected one advisory, got %v", notes)
	}

	a.TotalScore = 27
	if notes := a.Advisories(); len(notes) != 0 {
		t.Errorf("Expected no advisories, got %v", notes)
	}
}

func TestPatientValidate(t *testing.T) {
	p := &Patient{Name: "Jane Roe", DateOfBirth: "1950-04-02"}
	if err := p.Validate(); err != nil {
		t.Fatalf("Expected valid patient, got %v", err)
	}

	p.Name = "  "
	if err := p.Validate(); err == nil {
		t.Error("Expected missing name to fail")
	}

	p.Name = "Jane Roe"
	p.DateOfBirth = "unknown"
	if err := p.Validate(); err == nil {
		t.Error("Expected bad dob to fail")
	}
}
