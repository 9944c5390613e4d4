package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go-insights-pipeline/internal/model"
)

// ErrNotFound is returned when a run does not exist
var ErrNotFound = errors.New("run not found")

// Store persists run history in SQLite
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// RunRecord is one row of the runs table
type RunRecord struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Spec        model.PipelineJobSpec `json:"spec"`
	Status      string                `json:"status"`
	Fingerprint string                `json:"fingerprint,omitempty"`
	Cleaning    *model.CleaningReport `json:"cleaning,omitempty"`
	Metrics     *model.RunMetrics     `json:"metrics,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// RunError is one recorded failure of a run
type RunError struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"runId"`
	Stage     string    `json:"stage,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	name TEXT,
	spec TEXT,
	status TEXT,
	fingerprint TEXT,
	cleaning TEXT,
	metrics TEXT,
	report TEXT,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS run_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT,
	stage TEXT,
	kind TEXT,
	error_message TEXT,
	created_at DATETIME
);
CREATE TABLE IF NOT EXISTS results (
	run_id TEXT,
	position INTEGER,
	name TEXT,
	op TEXT,
	payload TEXT,
	PRIMARY KEY (run_id, position)
);
`

// Open connects to the database at path and creates tables if needed
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	// one writer at a time; the background job goroutines share this handle
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With("component", "store")}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a new pending run
func (s *Store) SaveRun(ctx context.Context, runID string, spec model.PipelineJobSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, spec.Name, string(specJSON), model.StatusPending, now, now)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	s.logger.Debug("run saved", "run_id", runID)
	return nil
}

// UpdateRunStatus updates run status
func (s *Store) UpdateRunStatus(ctx context.Context, runID, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	return requireRow(res)
}

// Outcome is the final state of a run
type Outcome struct {
	Status      string
	Fingerprint string
	Cleaning    model.CleaningReport
	Metrics     model.RunMetrics
	Report      string // rendered console report
}

// FinishRun records the final status, cleaning report, metrics and report text of a run
func (s *Store) FinishRun(ctx context.Context, runID string, out Outcome) error {
	cleaningJSON, err := json.Marshal(out.Cleaning)
	if err != nil {
		return err
	}
	metricsJSON, err := json.Marshal(out.Metrics)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, fingerprint = ?, cleaning = ?, metrics = ?, report = ?, updated_at = ? WHERE id = ?`,
		out.Status, out.Fingerprint, string(cleaningJSON), string(metricsJSON), out.Report, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return requireRow(res)
}

// GetReport returns the console report stored for a finished run
func (s *Store) GetReport(ctx context.Context, runID string) (string, error) {
	var report sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE id = ?`, runID).Scan(&report)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return report.String, nil
}

// SaveRunError records an error for a run
func (s *Store) SaveRunError(ctx context.Context, runID, stage, kind string, err error) error {
	if err == nil {
		return nil
	}
	_, e := s.db.ExecContext(ctx,
		`INSERT INTO run_errors (run_id, stage, kind, error_message, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, stage, kind, err.Error(), time.Now().UTC())
	if e != nil {
		return fmt.Errorf("failed to save run error: %w", e)
	}
	return nil
}

// ListRuns returns all runs, newest first, without their specs
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, status, created_at, updated_at FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun fetches a full run
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	var (
		r                                    RunRecord
		specJSON                             string
		fingerprint, cleaningJSON, metricsJS sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, spec, status, fingerprint, cleaning, metrics, created_at, updated_at FROM runs WHERE id = ?`, runID).
		Scan(&r.ID, &r.Name, &specJSON, &r.Status, &fingerprint, &cleaningJSON, &metricsJS, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(specJSON), &r.Spec); err != nil {
		return nil, fmt.Errorf("corrupt spec for run %s: %w", runID, err)
	}
	r.Fingerprint = fingerprint.String
	if cleaningJSON.Valid && cleaningJSON.String != "" {
		r.Cleaning = &model.CleaningReport{}
		if err := json.Unmarshal([]byte(cleaningJSON.String), r.Cleaning); err != nil {
			return nil, fmt.Errorf("corrupt cleaning report for run %s: %w", runID, err)
		}
	}
	if metricsJS.Valid && metricsJS.String != "" {
		r.Metrics = &model.RunMetrics{}
		if err := json.Unmarshal([]byte(metricsJS.String), r.Metrics); err != nil {
			return nil, fmt.Errorf("corrupt metrics for run %s: %w", runID, err)
		}
	}
	return &r, nil
}

// GetErrors returns the errors recorded for a run in insertion order
func (s *Store) GetErrors(ctx context.Context, runID string) ([]RunError, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, stage, kind, error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RunError{}
	for rows.Next() {
		var e RunError
		if err := rows.Scan(&e.ID, &e.RunID, &e.Stage, &e.Kind, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveResults replaces the stored results of a run
func (s *Store) SaveResults(ctx context.Context, runID string, results []model.AggregateResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear results: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO results (run_id, position, name, op, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range results {
		payload, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, runID, i, r.Name, r.Op, string(payload)); err != nil {
			return fmt.Errorf("failed to save result %s: %w", r.Name, err)
		}
	}
	return tx.Commit()
}

// GetResults returns the stored results of a run in their original order
func (s *Store) GetResults(ctx context.Context, runID string) ([]model.AggregateResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.AggregateResult{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r model.AggregateResult
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
