// Package domain contains the core entities of the longitudinal clinical trajectory engine:
// patients, their MoCA (Montreal Cognitive Assessment) screening visits, and the
// aggregate severity trajectory derived from them.
//
// Ratings follow a CDR-like (Clinical Dementia Rating) scale mapped from the MoCA total.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MoCA score bounds.
const (
	MinTotalScore = 0
	MaxTotalScore = 30
)

// MaxRating is the severity ceiling of the CDR-like scale.
const MaxRating = 3.0

// Accepted calendar formats for assessment dates and dates of birth.
const (
	DateLayout = "2006-01-02"
)

// StatusTier is the coarse triage bucket derived from the current rating.
type StatusTier string

const (
	TierStable   StatusTier = "Stable"
	TierMonitor  StatusTier = "Monitor"
	TierCritical StatusTier = "Critical"
)

// String returns the tier label.
func (t StatusTier) String() string {
	return string(t)
}

// IsValid reports whether t is one of the known tiers.
func (t StatusTier) IsValid() bool {
	switch t {
	case TierStable, TierMonitor, TierCritical:
		return true
	default:
		return false
	}
}

// RequiresAlert reports whether downstream alerting should be raised for this tier.
func (t StatusTier) RequiresAlert() bool {
	return t == TierCritical
}

// ConfidenceLabel is the human readable band of a numeric confidence.
type ConfidenceLabel string

const (
	ConfidenceLow      ConfidenceLabel = "Low"
	ConfidenceModerate ConfidenceLabel = "Moderate"
	ConfidenceHigh     ConfidenceLabel = "High"
)

// String returns the label.
func (c ConfidenceLabel) String() string {
	return string(c)
}

// ScoringSource records which path produced a patient's trajectory.
type ScoringSource string

const (
	SourceNone     ScoringSource = "none"
	SourceExternal ScoringSource = "external"
	SourceLocal    ScoringSource = "local"
	SourceStale    ScoringSource = "stale"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidAssessmentIndex = errors.New("invalid assessment index")
	ErrInvalidDate            = errors.New("invalid date")
)

// Subscores holds the MoCA section scores. They are not required to sum to the total.
type Subscores struct {
	VisuospatialExec int `json:"visuospatialExec"`
	Naming           int `json:"naming"`
	Attention        int `json:"attention"`
	Language         int `json:"language"`
	Abstraction      int `json:"abstraction"`
	Recall           int `json:"recall"`
	Orientation      int `json:"orientation"`
}

// Sum returns the sum of all section scores.
func (s Subscores) Sum() int {
	return s.VisuospatialExec + s.Naming + s.Attention + s.Language + s.Abstraction + s.Recall + s.Orientation
}

// Assessment is a single screening visit.
type Assessment struct {
	Date            string    `json:"date"`
	TotalScore      int       `json:"totalScore"`
	Subscores       Subscores `json:"subscores"`
	PredictedRating *float64  `json:"predictedRating,omitempty"`
}

// VisitTime parses the assessment date.
func (a Assessment) VisitTime() (time.Time, error) {
	return ParseDate(a.Date)
}

// Trajectory is the aggregate derived from a patient's assessment history.
// It is owned by the metrics aggregator and always recomputed as a whole.
type Trajectory struct {
	CurrentRating   float64         `json:"currentRating"`
	FutureRating    float64         `json:"futureRating"`
	Confidence      float64         `json:"confidence"`
	ConfidenceLabel ConfidenceLabel `json:"confidenceLabel"`
	DeclineRate     int             `json:"declineRate"`
	StatusTier      StatusTier      `json:"statusTier"`
	Narrative       string          `json:"narrative"`
	Source          ScoringSource   `json:"source"`
	ComputedAt      time.Time       `json:"computedAt,omitempty"`
}

// NeutralTrajectory returns the aggregate of a patient with no assessments.
func NeutralTrajectory() Trajectory {
	return Trajectory{
		CurrentRating:   0.0,
		FutureRating:    0.0,
		Confidence:      1.0,
		ConfidenceLabel: ConfidenceHigh,
		DeclineRate:     0,
		StatusTier:      TierStable,
		Source:          SourceNone,
	}
}

// Patient is the aggregate root. Assessments are kept in insertion order,
// which is not necessarily chronological.
type Patient struct {
	ID          string       `json:"id"`
	DoctorID    string       `json:"doctorId,omitempty"`
	Name        string       `json:"name"`
	DateOfBirth string       `json:"dob"`
	Sex         string       `json:"sex,omitempty"`
	Address     string       `json:"address,omitempty"`
	Phone       string       `json:"phone,omitempty"`
	Email       string       `json:"email,omitempty"`
	Assessments []Assessment `json:"mocaTests"`
	Trajectory  Trajectory   `json:"trajectory"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// CheckIndex validates an assessment index against the current collection.
func (p *Patient) CheckIndex(index int) error {
	if index < 0 || index >= len(p.Assessments) {
		return fmt.Errorf("%w: %d (patient has %d assessments)", ErrInvalidAssessmentIndex, index, len(p.Assessments))
	}
	return nil
}

// BirthTime parses the patient's date of birth.
func (p *Patient) BirthTime() (time.Time, error) {
	return ParseDate(p.DateOfBirth)
}

// ParseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
}
