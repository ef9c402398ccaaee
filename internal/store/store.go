// Package store is the SQLite-backed implementation of the visit result
// store: one durable record per patient/visit, an append-only raw-sample
// log, the intermediate feature vector, one result record per completed
// visit, and a rejected-scan audit trail.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/glucolumin/glucolumin/internal/model"
	"github.com/glucolumin/glucolumin/internal/monitoring"
	"github.com/glucolumin/glucolumin/internal/visit"
)

// Store wraps the SQLite handle.
type Store struct {
	*sql.DB
}

// Open opens (creating if needed) the scan database at path and ensures
// the baseline schema. Versioned schema changes go through the migrate
// CLI; this DDL is idempotent and matches migration 000001.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db}, nil
}

const schemaDDL = `
	CREATE TABLE IF NOT EXISTS patients (
		visit_id                TEXT PRIMARY KEY,
		patient_id              TEXT,
		name                    TEXT,
		age                     INTEGER,
		sex                     TEXT,
		height_cm               DOUBLE,
		weight_kg               DOUBLE,
		bmi                     DOUBLE,
		skin_tone               TEXT,
		blood_pressure          TEXT,
		had_food                TEXT,
		family_diabetic_history TEXT,
		status                  TEXT NOT NULL DEFAULT 'REGISTERED',
		failure_reason          TEXT,
		created_at              TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS raw_samples (
		visit_id       TEXT NOT NULL,
		sample_index   INTEGER NOT NULL,
		signal_value   DOUBLE NOT NULL,
		created_at     TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_raw_samples_visit ON raw_samples(visit_id);
	CREATE TABLE IF NOT EXISTS features (
		visit_id       TEXT NOT NULL,
		feature_name   TEXT NOT NULL,
		feature_order  INTEGER NOT NULL,
		feature_value  DOUBLE NOT NULL,
		PRIMARY KEY (visit_id, feature_name)
	);
	CREATE TABLE IF NOT EXISTS results (
		visit_id       TEXT PRIMARY KEY,
		patient_id     TEXT,
		glucose_mg_dl  DOUBLE NOT NULL,
		classification TEXT NOT NULL,
		diet_advice    TEXT NOT NULL,
		computed_at    TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS invalid_scans (
		visit_id       TEXT,
		reason         TEXT,
		value          DOUBLE,
		created_at     TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
`

// SavePatient persists the registration snapshot. Fails on an existing
// visit id.
func (s *Store) SavePatient(ctx context.Context, p *visit.Patient) error {
	_, err := s.ExecContext(ctx, `
		INSERT INTO patients (
			visit_id, patient_id, name, age, sex, height_cm, weight_kg,
			bmi, skin_tone, blood_pressure, had_food,
			family_diabetic_history, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.VisitID, p.PatientID, p.Name, p.Age, p.Sex, p.HeightCM, p.WeightKG,
		p.BMI, p.SkinTone, p.BloodPressure, p.HadFood,
		p.FamilyDiabeticHistory, string(visit.StatusRegistered), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert patient %s: %w", p.VisitID, err)
	}
	return nil
}

// Patient returns the registration snapshot for a visit.
func (s *Store) Patient(ctx context.Context, visitID string) (*visit.Patient, error) {
	var p visit.Patient
	err := s.QueryRowContext(ctx, `
		SELECT visit_id, patient_id, name, age, sex, height_cm, weight_kg,
		       bmi, skin_tone, blood_pressure, had_food,
		       family_diabetic_history, created_at
		FROM patients WHERE visit_id = ?`, visitID,
	).Scan(
		&p.VisitID, &p.PatientID, &p.Name, &p.Age, &p.Sex, &p.HeightCM,
		&p.WeightKG, &p.BMI, &p.SkinTone, &p.BloodPressure, &p.HadFood,
		&p.FamilyDiabeticHistory, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", visit.ErrNotFound, visitID)
	}
	if err != nil {
		return nil, fmt.Errorf("query patient %s: %w", visitID, err)
	}
	return &p, nil
}

// SetStatus records the session status, with the failure reason for
// FAILED visits.
func (s *Store) SetStatus(ctx context.Context, visitID string, status visit.Status, reason string) error {
	res, err := s.ExecContext(ctx,
		`UPDATE patients SET status = ?, failure_reason = ? WHERE visit_id = ?`,
		string(status), nullIfEmpty(reason), visitID,
	)
	if err != nil {
		return fmt.Errorf("update status %s: %w", visitID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", visit.ErrNotFound, visitID)
	}
	return nil
}

// VisitStatus returns the persisted status and failure reason.
func (s *Store) VisitStatus(ctx context.Context, visitID string) (visit.Status, string, error) {
	var status string
	var reason sql.NullString
	err := s.QueryRowContext(ctx,
		`SELECT status, failure_reason FROM patients WHERE visit_id = ?`, visitID,
	).Scan(&status, &reason)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", fmt.Errorf("%w: %s", visit.ErrNotFound, visitID)
	}
	if err != nil {
		return "", "", fmt.Errorf("query status %s: %w", visitID, err)
	}
	return visit.Status(status), reason.String, nil
}

// AppendRawSamples appends to the visit's raw-sample log in one
// transaction.
func (s *Store) AppendRawSamples(ctx context.Context, visitID string, samples []visit.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			monitoring.Logf("warning: failed to rollback raw-sample tx: %v", err)
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO raw_samples (visit_id, sample_index, signal_value) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, smp := range samples {
		if _, err := stmt.ExecContext(ctx, visitID, smp.Index, smp.Value); err != nil {
			return fmt.Errorf("append sample %d: %w", smp.Index, err)
		}
	}
	return tx.Commit()
}

// RawSamples returns the ordered raw-sample log for a visit.
func (s *Store) RawSamples(ctx context.Context, visitID string) ([]visit.Sample, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT sample_index, signal_value FROM raw_samples
		 WHERE visit_id = ? ORDER BY sample_index`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []visit.Sample
	for rows.Next() {
		var smp visit.Sample
		if err := rows.Scan(&smp.Index, &smp.Value); err != nil {
			return nil, err
		}
		samples = append(samples, smp)
	}
	return samples, rows.Err()
}

// SaveFeatures records the intermediate feature vector for audit.
func (s *Store) SaveFeatures(ctx context.Context, visitID string, names []string, values []float64) error {
	if len(names) != len(values) {
		return fmt.Errorf("feature names/values length mismatch: %d vs %d", len(names), len(values))
	}
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			monitoring.Logf("warning: failed to rollback feature tx: %v", err)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO features (visit_id, feature_name, feature_order, feature_value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(visit_id, feature_name) DO UPDATE SET
			feature_value = excluded.feature_value`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, name := range names {
		if _, err := stmt.ExecContext(ctx, visitID, name, i, values[i]); err != nil {
			return fmt.Errorf("save feature %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// Features returns the persisted feature vector in extraction order.
func (s *Store) Features(ctx context.Context, visitID string) (names []string, values []float64, err error) {
	rows, err := s.QueryContext(ctx, `
		SELECT feature_name, feature_value FROM features
		WHERE visit_id = ? ORDER BY feature_order`, visitID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, nil, err
		}
		names = append(names, name)
		values = append(values, value)
	}
	return names, values, rows.Err()
}

// SaveResult persists the finished record. At most one per visit.
func (s *Store) SaveResult(ctx context.Context, r *visit.PredictionResult) error {
	_, err := s.ExecContext(ctx, `
		INSERT INTO results (
			visit_id, patient_id, glucose_mg_dl, classification,
			diet_advice, computed_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		r.VisitID, r.PatientID, r.GlucoseMgDl, string(r.Classification),
		r.DietAdvice, r.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result %s: %w", r.VisitID, err)
	}
	return nil
}

// Result returns the finished record, or visit.ErrNotFound.
func (s *Store) Result(ctx context.Context, visitID string) (*visit.PredictionResult, error) {
	var r visit.PredictionResult
	var class string
	err := s.QueryRowContext(ctx, `
		SELECT visit_id, patient_id, glucose_mg_dl, classification,
		       diet_advice, computed_at
		FROM results WHERE visit_id = ?`, visitID,
	).Scan(&r.VisitID, &r.PatientID, &r.GlucoseMgDl, &class, &r.DietAdvice, &r.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no result for %s", visit.ErrNotFound, visitID)
	}
	if err != nil {
		return nil, fmt.Errorf("query result %s: %w", visitID, err)
	}
	r.Classification = model.Classification(class)
	return &r, nil
}

// LogInvalidScan records a rejected scan on the audit trail.
func (s *Store) LogInvalidScan(ctx context.Context, visitID, reason string, value float64) error {
	_, err := s.ExecContext(ctx,
		`INSERT INTO invalid_scans (visit_id, reason, value) VALUES (?, ?, ?)`,
		visitID, reason, value,
	)
	if err != nil {
		return fmt.Errorf("log invalid scan %s: %w", visitID, err)
	}
	return nil
}

// Ping verifies the database is reachable, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.PingContext(ctx)
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
