package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/moca-trajectory-engine/internal/domain"
)

// PostgresStore implements domain.PatientRepository on a pgx pool. The schema
// comes from the migrations directory.
type PostgresStore struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresStore creates a new Postgres patient repository
func NewPostgresStore(db *pgxpool.Pool, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{
		db:  db,
		log: logger,
	}
}

const pgPatientColumns = `id, doctor_id, name, dob, sex, address, phone, email,
	assessments, trajectory, created_at, updated_at`

func scanPgPatient(row pgx.Row) (*domain.Patient, error) {
	p := &domain.Patient{}
	var assessments, trajectory []byte

	err := row.Scan(
		&p.ID, &p.DoctorID, &p.Name, &p.DateOfBirth, &p.Sex, &p.Address, &p.Phone, &p.Email,
		&assessments, &trajectory, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeDocuments(p, assessments, trajectory); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// FindPatient retrieves a patient by ID
func (r *PostgresStore) FindPatient(ctx context.Context, id string) (*domain.Patient, error) {
	query := `SELECT ` + pgPatientColumns + ` FROM patients WHERE id = $1`

	p, err := scanPgPatient(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("patient not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"patient_id": id,
			"error":      err,
		}).Error("Failed to get patient by ID")
		return nil, fmt.Errorf("getting patient by ID: %w", err)
	}
	return p, nil
}

// SavePatient inserts or updates a patient
func (r *PostgresStore) SavePatient(ctx context.Context, p *domain.Patient) error {
	assessments, trajectory, err := encodeDocuments(p)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	query := `
		INSERT INTO patients (
			id, doctor_id, name, dob, sex, address, phone, email,
			assessments, trajectory, status_tier, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		ON CONFLICT (id) DO UPDATE SET
			doctor_id = EXCLUDED.doctor_id,
			name = EXCLUDED.name,
			dob = EXCLUDED.dob,
			sex = EXCLUDED.sex,
			address = EXCLUDED.address,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			assessments = EXCLUDED.assessments,
			trajectory = EXCLUDED.trajectory,
			status_tier = EXCLUDED.status_tier,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(ctx, query,
		p.ID, p.DoctorID, p.Name, p.DateOfBirth, p.Sex, p.Address, p.Phone, p.Email,
		assessments, trajectory, string(p.Trajectory.StatusTier), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"patient_id": p.ID,
			"error":      err,
		}).Error("Failed to save patient")
		return fmt.Errorf("saving patient: %w", err)
	}
	return nil
}

// ListPatients returns patients in creation order. An empty doctorID lists all.
func (r *PostgresStore) ListPatients(ctx context.Context, doctorID string) ([]*domain.Patient, error) {
	query := `SELECT ` + pgPatientColumns + ` FROM patients
		WHERE ($1 = '' OR doctor_id = $1)
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, doctorID)
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}
	defer rows.Close()

	patients := []*domain.Patient{}
	for rows.Next() {
		p, err := scanPgPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning patient: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patients: %w", err)
	}
	return patients, nil
}

// DeletePatient removes a patient by ID
func (r *PostgresStore) DeletePatient(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("patient not found: %w", domain.ErrNotFound)
	}
	return nil
}

// Ping checks the database connection
func (r *PostgresStore) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Close closes the pool
func (r *PostgresStore) Close() error {
	r.db.Close()
	return nil
}
