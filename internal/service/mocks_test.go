package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/moca-trajectory-engine/internal/domain"
)

// MockScorer is a mock implementation of the Scorer interface
type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) Score(ctx context.Context, patient *domain.Patient) ([]domain.PredictionRecord, error) {
	args := m.Called(ctx, patient)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PredictionRecord), args.Error(1)
}

// MockPatientRepository is a mock implementation of the PatientRepository interface
type MockPatientRepository struct {
	mock.Mock
}

func (m *MockPatientRepository) FindPatient(ctx context.Context, id string) (*domain.Patient, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Patient), args.Error(1)
}

func (m *MockPatientRepository) SavePatient(ctx context.Context, patient *domain.Patient) error {
	args := m.Called(ctx, patient)
	return args.Error(0)
}

func (m *MockPatientRepository) ListPatients(ctx context.Context, doctorID string) ([]*domain.Patient, error) {
	args := m.Called(ctx, doctorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Patient), args.Error(1)
}

func (m *MockPatientRepository) DeletePatient(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPatientRepository) Close() error {
	return m.Called().Error(0)
}

// MockEventPublisher is a mock implementation of the EventPublisher interface
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishTierTransition(ctx context.Context, event domain.TierTransition) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	return m.Called().Error(0)
}

// memoryRepository stores deep copies so tests observe only persisted state.
type memoryRepository struct {
	mu       sync.Mutex
	patients map[string][]byte
	saves    int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{patients: make(map[string][]byte)}
}

func (r *memoryRepository) FindPatient(_ context.Context, id string) (*domain.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, ok := r.patients[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var p domain.Patient
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *memoryRepository) SavePatient(_ context.Context, patient *domain.Patient) error {
	data, err := json.Marshal(patient)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[patient.ID] = data
	r.saves++
	return nil
}

func (r *memoryRepository) ListPatients(ctx context.Context, doctorID string) ([]*domain.Patient, error) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.patients))
	for id := range r.patients {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)

	var out []*domain.Patient
	for _, id := range ids {
		p, err := r.FindPatient(ctx, id)
		if err != nil {
			return nil, err
		}
		if doctorID == "" || p.DoctorID == doctorID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepository) DeletePatient(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.patients, id)
	return nil
}

func (r *memoryRepository) Close() error { return nil }

func (r *memoryRepository) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}
