package domain

import (
	"fmt"
	"strings"
)

// subscoreDomain is the declared inclusive range of one MoCA section.
type subscoreDomain struct {
	field string
	max   int
	value func(Subscores) int
}

var subscoreDomains = []subscoreDomain{
	{"visuospatialExec", 5, func(s Subscores) int { return s.VisuospatialExec }},
	{"naming", 3, func(s Subscores) int { return s.Naming }},
	{"attention", 6, func(s Subscores) int { return s.Attention }},
	{"language", 3, func(s Subscores) int { return s.Language }},
	{"abstraction", 2, func(s Subscores) int { return s.Abstraction }},
	{"recall", 5, func(s Subscores) int { return s.Recall }},
	{"orientation", 6, func(s Subscores) int { return s.Orientation }},
}

// Validate checks the assessment date, total score and subscore domains.
// A subscore sum that differs from the total is not an error; see Advisories.
func (a Assessment) Validate() error {
	if _, err := ParseDate(a.Date); err != nil {
		return NewValidationError("date", "must be a calendar date (YYYY-MM-DD) or RFC 3339 timestamp", a.Date)
	}
	if a.TotalScore < MinTotalScore || a.TotalScore > MaxTotalScore {
		return NewValidationError("totalScore", fmt.Sprintf("must be between %d and %d", MinTotalScore, MaxTotalScore), a.TotalScore)
	}
	for _, d := range subscoreDomains {
		v := d.value(a.Subscores)
		if v < 0 || v > d.max {
			return NewValidationError("subscores."+d.field, fmt.Sprintf("must be between 0 and %d", d.max), v)
		}
	}
	return nil
}

// Advisories returns non-blocking data quality notes for the assessment.
func (a Assessment) Advisories() []string {
	var notes []string
	if sum := a.Subscores.Sum(); sum != a.TotalScore {
		notes = append(notes, fmt.Sprintf("subscores sum to %d but totalScore is %d", sum, a.TotalScore))
	}
	return notes
}

// Validate checks the fields required to score a patient.
func (p *Patient) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("name", "is required", p.Name)
	}
	if _, err := ParseDate(p.DateOfBirth); err != nil {
		return NewValidationError("dob", "must be a calendar date (YYYY-MM-DD) or RFC 3339 timestamp", p.DateOfBirth)
	}
	return nil
}
