package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/moca-trajectory-engine/internal/domain"
)

// SQLiteStore implements domain.PatientRepository using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases shared and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return NewSQLiteStoreFromDB(db, logger), nil
}

// NewSQLiteStoreFromDB wraps an open database whose schema already exists.
func NewSQLiteStoreFromDB(db *sql.DB, logger *logrus.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, log: logger}
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS patients (
		id TEXT PRIMARY KEY,
		doctor_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		dob TEXT NOT NULL,
		sex TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		assessments TEXT NOT NULL DEFAULT '[]',
		trajectory TEXT NOT NULL DEFAULT '{}',
		status_tier TEXT NOT NULL DEFAULT 'Stable',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_patients_doctor_id ON patients(doctor_id);
	CREATE INDEX IF NOT EXISTS idx_patients_status_tier ON patients(status_tier);
	`

	_, err := db.Exec(schema)
	return err
}

const sqlitePatientColumns = `id, doctor_id, name, dob, sex, address, phone, email,
	assessments, trajectory, created_at, updated_at`

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLitePatient(s scanner) (*domain.Patient, error) {
	p := &domain.Patient{}
	var assessments, trajectory, createdAt, updatedAt string

	err := s.Scan(
		&p.ID, &p.DoctorID, &p.Name, &p.DateOfBirth, &p.Sex, &p.Address, &p.Phone, &p.Email,
		&assessments, &trajectory, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeDocuments(p, []byte(assessments), []byte(trajectory)); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return p, nil
}

// FindPatient retrieves a patient by ID
func (s *SQLiteStore) FindPatient(ctx context.Context, id string) (*domain.Patient, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sqlitePatientColumns+" FROM patients WHERE id = ?", id)

	p, err := scanSQLitePatient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("patient %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"patient_id": id,
			"error":      err,
		}).Error("Failed to get patient")
		return nil, fmt.Errorf("getting patient: %w", err)
	}
	return p, nil
}

// SavePatient inserts or replaces a patient
func (s *SQLiteStore) SavePatient(ctx context.Context, p *domain.Patient) error {
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO patients (
			id, doctor_id, name, dob, sex, address, phone, email,
			assessments, trajectory, status_tier, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			doctor_id = excluded.doctor_id,
			name = excluded.name,
			dob = excluded.dob,
			sex = excluded.sex,
			address = excluded.address,
			phone = excluded.phone,
			email = excluded.email,
			assessments = excluded.assessments,
			trajectory = excluded.trajectory,
			status_tier = excluded.status_tier,
			updated_at = excluded.updated_at
	`,
		p.ID, p.DoctorID, p.Name, p.DateOfBirth, p.Sex, p.Address, p.Phone, p.Email,
		string(assessments), string(trajectory), string(p.Trajectory.StatusTier),
		p.CreatedAt.UTC().Format(time.RFC3339Nano), p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"patient_id": p.ID,
			"error":      err,
		}).Error("Failed to save patient")
		return fmt.Errorf("saving patient: %w", err)
	}
	return nil
}

// ListPatients returns patients in creation order. An empty doctorID lists all.
func (s *SQLiteStore) ListPatients(ctx context.Context, doctorID string) ([]*domain.Patient, error) {
	query := "SELECT " + sqlitePatientColumns + " FROM patients"
	var args []interface{}
	if doctorID != "" {
		query += " WHERE doctor_id = ?"
		args = append(args, doctorID)
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}
	defer rows.Close()

	patients := []*domain.Patient{}
	for rows.Next() {
		p, err := scanSQLitePatient(rows)
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
func (s *SQLiteStore) DeletePatient(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM patients WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting patient: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting patient: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("patient %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Ping checks the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
