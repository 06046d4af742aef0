// Package journal persists run history to SQLite. The journal is
// observational: the pipeline's resumability comes from idempotent
// destinations and rederived indexes, never from journal state.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ctcurator/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped on schema changes. The journal carries no
// pipeline state, so a stale database can simply be deleted.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by a different
// journal version.
var ErrSchemaMismatch = errors.New("journal schema version mismatch")

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Unit statuses.
const (
	UnitCompleted = "completed"
	UnitFailed    = "failed"
)

// Store manages journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Run is one recorded stage execution.
type Run struct {
	ID             string
	Stage          string
	Status         string
	StartedAt      time.Time
	FinishedAt     time.Time
	CompletedUnits int
	FailedUnits    int
}

// Unit is one recorded unit outcome within a run.
type Unit struct {
	PatientID       string
	AcquisitionDate string
	Status          string
	Detail          string
}

// Open initializes or connects to the journal database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.JournalPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// BeginRun records a new stage execution and returns its identifier.
func (s *Store) BeginRun(ctx context.Context, stage string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, stage, status, started_at) VALUES (?, ?, ?, ?)",
		id, stage, RunRunning, now)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun closes out a run with its final status and unit counts.
func (s *Store) FinishRun(ctx context.Context, runID, status string, completed, failed int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		"UPDATE runs SET status = ?, finished_at = ?, completed_units = ?, failed_units = ? WHERE id = ?",
		status, now, completed, failed, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finish run: unknown run %s", runID)
	}
	return nil
}

// RecordUnit appends one unit outcome to a run.
func (s *Store) RecordUnit(ctx context.Context, runID string, unit Unit) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO units (run_id, patient_id, acquisition_date, status, detail, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		runID, unit.PatientID, unit.AcquisitionDate, unit.Status, nullableString(unit.Detail), now)
	if err != nil {
		return fmt.Errorf("record unit: %w", err)
	}
	return nil
}

// RecentRuns returns the most recently started runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stage, status, started_at, finished_at, completed_units, failed_units
         FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run      Run
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Stage, &run.Status, &started, &finished,
			&run.CompletedUnits, &run.FailedUnits); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse run start: %w", err)
		}
		if finished.Valid {
			if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished.String); err != nil {
				return nil, fmt.Errorf("parse run finish: %w", err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FailedUnits returns the failed units of a run in recorded order.
func (s *Store) FailedUnits(ctx context.Context, runID string) ([]Unit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT patient_id, acquisition_date, status, detail
         FROM units WHERE run_id = ? AND status = ? ORDER BY id`, runID, UnitFailed)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		var (
			unit   Unit
			detail sql.NullString
		)
		if err := rows.Scan(&unit.PatientID, &unit.AcquisitionDate, &unit.Status, &detail); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		unit.Detail = detail.String
		units = append(units, unit)
	}
	return units, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
