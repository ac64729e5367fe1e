package domain

import (
	"context"
	"time"
)

// PatientRepository persists patients together with their assessments and trajectory.
type PatientRepository interface {
	FindPatient(ctx context.Context, id string) (*Patient, error)
	SavePatient(ctx context.Context, patient *Patient) error
	ListPatients(ctx context.Context, doctorID string) ([]*Patient, error)
	DeletePatient(ctx context.Context, id string) error
	Close() error
}

// Scorer produces per-visit predictions for a patient's history. Implementations
// write predicted ratings back onto the patient's assessments only on success.
type Scorer interface {
	Score(ctx context.Context, patient *Patient) ([]PredictionRecord, error)
}

// TierTransition is emitted when a recompute moves a patient to a different status tier.
type TierTransition struct {
	PatientID     string     `json:"patient_id"`
	DoctorID      string     `json:"doctor_id,omitempty"`
	From          StatusTier `json:"from"`
	To            StatusTier `json:"to"`
	CurrentRating float64    `json:"current_rating"`
	FutureRating  float64    `json:"future_rating"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// EventPublisher delivers tier transitions to downstream consumers.
type EventPublisher interface {
	PublishTierTransition(ctx context.Context, event TierTransition) error
	Close() error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetScorerConfig() *ScorerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	IsProduction() bool
}
