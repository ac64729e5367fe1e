package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/moca-trajectory-engine/internal/domain"
	"github.com/moca-trajectory-engine/internal/logging"
)

// PatientDetails are the caller-editable demographic fields.
type PatientDetails struct {
	Name        string `json:"name"`
	DateOfBirth string `json:"dob"`
	Sex         string `json:"sex,omitempty"`
	Address     string `json:"address,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
}

// MutationResult is returned by every write. The mutation itself has been
// persisted even when Outcome reports a stale trajectory.
type MutationResult struct {
	Patient    *domain.Patient `json:"patient"`
	Outcome    Outcome         `json:"-"`
	Advisories []string        `json:"advisories,omitempty"`
}

// RecomputeSummary reports a batch recompute.
type RecomputeSummary struct {
	Total    int                          `json:"total"`
	BySource map[domain.ScoringSource]int `json:"bySource"`
	Failed   []string                     `json:"failed,omitempty"`
}

// PatientServiceConfig holds the optional collaborators of a PatientService.
type PatientServiceConfig struct {
	Publisher         domain.EventPublisher
	Metrics           *Metrics
	RecomputeParallel int
}

// PatientService owns the patient registry workflow: every assessment change is
// saved first and then followed by a trajectory recompute and a second save.
type PatientService struct {
	repo       domain.PatientRepository
	aggregator *MetricsAggregator
	publisher  domain.EventPublisher
	metrics    *Metrics
	logger     *logrus.Logger
	locks      *keyedMutex
	parallel   int
	now        func() time.Time
}

// NewPatientService creates a new patient service
func NewPatientService(
	repo domain.PatientRepository,
	aggregator *MetricsAggregator,
	logger *logrus.Logger,
	config PatientServiceConfig,
) *PatientService {
	parallel := config.RecomputeParallel
	if parallel <= 0 {
		parallel = 1
	}
	return &PatientService{
		repo:       repo,
		aggregator: aggregator,
		publisher:  config.Publisher,
		metrics:    config.Metrics,
		logger:     logger,
		locks:      newKeyedMutex(),
		parallel:   parallel,
		now:        time.Now,
	}
}

// CreatePatient registers a patient, optionally with an initial history.
func (s *PatientService) CreatePatient(ctx context.Context, doctorID string, details PatientDetails, assessments []domain.Assessment) (*MutationResult, error) {
	now := s.now().UTC()
	patient := &domain.Patient{
		ID:          uuid.New().String(),
		DoctorID:    doctorID,
		Assessments: []domain.Assessment{},
		Trajectory:  domain.NeutralTrajectory(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	applyDetails(patient, details)
	if err := patient.Validate(); err != nil {
		return nil, err
	}

	var advisories []string
	for _, a := range assessments {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		a.PredictedRating = nil
		advisories = append(advisories, a.Advisories()...)
		patient.Assessments = append(patient.Assessments, a)
	}

	unlock := s.locks.Lock(patient.ID)
	defer unlock()

	if err := s.repo.SavePatient(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to save patient: %w", err)
	}

	logging.FromContext(ctx, s.logger).WithFields(logrus.Fields{
		"patient_id":  patient.ID,
		"doctor_id":   doctorID,
		"assessments": len(patient.Assessments),
	}).Info("Patient created")

	result := s.recomputeAndSave(ctx, patient)
	result.Advisories = advisories
	return result, nil
}

// GetPatient returns a patient visible to doctorID. An empty doctorID sees all patients.
func (s *PatientService) GetPatient(ctx context.Context, doctorID, id string) (*domain.Patient, error) {
	patient, err := s.repo.FindPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	if doctorID != "" && patient.DoctorID != doctorID {
		return nil, fmt.Errorf("patient %s: %w", id, domain.ErrNotFound)
	}
	return patient, nil
}

// ListPatients returns the patients visible to doctorID
func (s *PatientService) ListPatients(ctx context.Context, doctorID string) ([]*domain.Patient, error) {
	return s.repo.ListPatients(ctx, doctorID)
}

// UpdatePatient replaces a patient's demographic fields. A changed date of
// birth changes ages at each visit, so the trajectory is recomputed.
func (s *PatientService) UpdatePatient(ctx context.Context, doctorID, id string, details PatientDetails) (*MutationResult, error) {
	var dobChanged bool
	return s.mutate(ctx, doctorID, id, func(p *domain.Patient) error {
		previous := *p
		dobChanged = p.DateOfBirth != details.DateOfBirth
		applyDetails(p, details)
		if err := p.Validate(); err != nil {
			*p = previous
			return err
		}
		return nil
	}, func() bool { return dobChanged })
}

// DeletePatient removes a patient visible to doctorID
func (s *PatientService) DeletePatient(ctx context.Context, doctorID, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.GetPatient(ctx, doctorID, id); err != nil {
		return err
	}
	if err := s.repo.DeletePatient(ctx, id); err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}

	logging.FromContext(ctx, s.logger).WithField("patient_id", id).Info("Patient deleted")
	return nil
}

// AddAssessment appends an assessment and recomputes the trajectory.
func (s *PatientService) AddAssessment(ctx context.Context, doctorID, id string, a domain.Assessment) (*MutationResult, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	a.PredictedRating = nil

	result, err := s.mutate(ctx, doctorID, id, func(p *domain.Patient) error {
		p.Assessments = append(p.Assessments, a)
		return nil
	}, always)
	if err != nil {
		return nil, err
	}
	result.Advisories = a.Advisories()
	return result, nil
}

// UpdateAssessment merges the JSON object update into the assessment at index
// and recomputes the trajectory. Fields absent from update keep their stored
// values; subscores merge section by section.
func (s *PatientService) UpdateAssessment(ctx context.Context, doctorID, id string, index int, update []byte) (*MutationResult, error) {
	var merged domain.Assessment
	result, err := s.mutate(ctx, doctorID, id, func(p *domain.Patient) error {
		if err := p.CheckIndex(index); err != nil {
			return err
		}
		merged = p.Assessments[index]
		merged.PredictedRating = nil
		if err := json.Unmarshal(update, &merged); err != nil {
			return domain.NewValidationError("assessment", "invalid assessment update", err.Error())
		}
		if err := merged.Validate(); err != nil {
			return err
		}
		merged.PredictedRating = nil
		p.Assessments[index] = merged
		return nil
	}, always)
	if err != nil {
		return nil, err
	}
	result.Advisories = merged.Advisories()
	return result, nil
}

// DeleteAssessment removes the assessment at index and recomputes the trajectory.
func (s *PatientService) DeleteAssessment(ctx context.Context, doctorID, id string, index int) (*MutationResult, error) {
	return s.mutate(ctx, doctorID, id, func(p *domain.Patient) error {
		if err := p.CheckIndex(index); err != nil {
			return err
		}
		p.Assessments = append(p.Assessments[:index], p.Assessments[index+1:]...)
		return nil
	}, always)
}

// Recompute recomputes one patient's trajectory without changing its history.
func (s *PatientService) Recompute(ctx context.Context, doctorID, id string) (*MutationResult, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	patient, err := s.GetPatient(ctx, doctorID, id)
	if err != nil {
		return nil, err
	}
	return s.recomputeAndSave(ctx, patient), nil
}

// RecomputeAll recomputes every patient visible to doctorID with bounded
// parallelism. Individual scoring failures are reported, not returned.
func (s *PatientService) RecomputeAll(ctx context.Context, doctorID string) (*RecomputeSummary, error) {
	patients, err := s.repo.ListPatients(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	outcomes := make([]Outcome, len(patients))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)

	for i, p := range patients {
		g.Go(func() error {
			result, err := s.Recompute(gctx, doctorID, p.ID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					outcomes[i] = Outcome{Source: domain.SourceNone}
					return nil
				}
				return fmt.Errorf("failed to recompute patient %s: %w", p.ID, err)
			}
			outcomes[i] = result.Outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &RecomputeSummary{
		Total:    len(patients),
		BySource: make(map[domain.ScoringSource]int),
	}
	for i, o := range outcomes {
		summary.BySource[o.Source]++
		if o.Err != nil {
			summary.Failed = append(summary.Failed, patients[i].ID)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"total":  summary.Total,
		"failed": len(summary.Failed),
	}).Info("Batch recompute finished")

	return summary, nil
}

func always() bool { return true }

// mutate applies fn under the patient lock and persists the result before any
// scoring happens. needsRecompute is consulted after fn succeeds.
func (s *PatientService) mutate(ctx context.Context, doctorID, id string, fn func(*domain.Patient) error, needsRecompute func() bool) (*MutationResult, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	patient, err := s.GetPatient(ctx, doctorID, id)
	if err != nil {
		return nil, err
	}
	if err := fn(patient); err != nil {
		return nil, err
	}

	patient.UpdatedAt = s.now().UTC()
	if err := s.repo.SavePatient(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to save patient: %w", err)
	}

	if !needsRecompute() {
		return &MutationResult{Patient: patient, Outcome: Outcome{Source: patient.Trajectory.Source}}, nil
	}
	return s.recomputeAndSave(ctx, patient), nil
}

// recomputeAndSave never fails: the primary write is already durable.
func (s *PatientService) recomputeAndSave(ctx context.Context, patient *domain.Patient) *MutationResult {
	log := logging.FromContext(ctx, s.logger).WithField("patient_id", patient.ID)
	before := patient.Trajectory.StatusTier

	start := time.Now()
	outcome := s.aggregator.Recompute(ctx, patient)
	s.metrics.ObserveRecompute(outcome.Source, time.Since(start))

	if outcome.Stale() {
		return &MutationResult{Patient: patient, Outcome: outcome}
	}

	if err := s.repo.SavePatient(ctx, patient); err != nil {
		log.WithError(err).Error("Failed to persist recomputed trajectory")
		return &MutationResult{Patient: patient, Outcome: Outcome{Source: outcome.Source, Err: err}}
	}

	after := patient.Trajectory.StatusTier
	if before != "" && before != after {
		s.publishTransition(ctx, log, patient, before, after)
	}

	return &MutationResult{Patient: patient, Outcome: outcome}
}

func (s *PatientService) publishTransition(ctx context.Context, log *logrus.Entry, patient *domain.Patient, from, to domain.StatusTier) {
	s.metrics.IncTierTransition(from, to)
	log.WithFields(logrus.Fields{
		"from": from,
		"to":   to,
	}).Info("Patient status tier changed")

	if s.publisher == nil {
		return
	}
	event := domain.TierTransition{
		PatientID:     patient.ID,
		DoctorID:      patient.DoctorID,
		From:          from,
		To:            to,
		CurrentRating: patient.Trajectory.CurrentRating,
		FutureRating:  patient.Trajectory.FutureRating,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.publisher.PublishTierTransition(ctx, event); err != nil {
		log.WithError(err).Warn("Failed to publish tier transition")
	}
}

func applyDetails(p *domain.Patient, d PatientDetails) {
	p.Name = d.Name
	p.DateOfBirth = d.DateOfBirth
	p.Sex = d.Sex
	p.Address = d.Address
	p.Phone = d.Phone
	p.Email = d.Email
}
