// Package sqlite persists fit results so runs can be compared across
// invocations and config edits.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fdtrlab/internal/domain"
	"fdtrlab/internal/fit"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Repository stores fit results in SQLite
type Repository struct {
	db *sql.DB
}

// StoredParam is one persisted parameter of a fit result
type StoredParam struct {
	Name   string
	Value  float64
	Stderr sql.NullFloat64
	Min    float64
	Max    float64
	Vary   bool
}

// StoredResult is a persisted fit result with its parameters
type StoredResult struct {
	JobID    uuid.UUID
	Method   fit.Method
	Status   fit.Status
	ChiSq    float64
	NEval    int
	Error    string
	Started  time.Time
	Finished time.Time
	Params   []StoredParam
}

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		chisq REAL NOT NULL DEFAULT 0,
		neval INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS job_params (
		job_id TEXT NOT NULL,
		name TEXT NOT NULL,
		value REAL NOT NULL,
		stderr REAL,
		min REAL NOT NULL,
		max REAL NOT NULL,
		vary INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (job_id, name),
		FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_started ON jobs(started_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// SaveResult persists a finished fit result together with the final
// parameter set. Values in res override the parameter set for
// parameters the fit adjusted.
func (r *Repository) SaveResult(ctx context.Context, res fit.Result, params *fit.Params) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO jobs (id, method, status, chisq, neval, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, res.JobID.String(), string(res.Method), string(res.Status),
		res.ChiSq, res.NEval, errText, res.Started.UTC(), res.Finished.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM job_params WHERE job_id = ?`, res.JobID.String()); err != nil {
		return fmt.Errorf("failed to clear job params: %w", err)
	}

	for _, p := range params.All() {
		value := p.Value
		if v, ok := res.Values[p.Name]; ok {
			value = v
		}
		var stderr sql.NullFloat64
		if s, ok := res.Stderr[p.Name]; ok {
			stderr = sql.NullFloat64{Float64: s, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO job_params (job_id, name, value, stderr, min, max, vary)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, res.JobID.String(), p.Name, value, stderr, p.Min, p.Max, p.Vary)
		if err != nil {
			return fmt.Errorf("failed to insert param %q: %w", p.Name, err)
		}
	}

	return tx.Commit()
}

// GetResult loads one persisted result by job id
func (r *Repository) GetResult(ctx context.Context, id uuid.UUID) (*StoredResult, error) {
	res := &StoredResult{JobID: id}
	var method, status string
	err := r.db.QueryRowContext(ctx, `
		SELECT method, status, chisq, neval, error, started_at, finished_at
		FROM jobs WHERE id = ?
	`, id.String()).Scan(&method, &status, &res.ChiSq, &res.NEval, &res.Error, &res.Started, &res.Finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s not found", domain.ErrIndex, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query job: %w", err)
	}
	res.Method = fit.Method(method)
	res.Status = fit.Status(status)

	rows, err := r.db.QueryContext(ctx, `
		SELECT name, value, stderr, min, max, vary
		FROM job_params WHERE job_id = ? ORDER BY name
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query job params: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p StoredParam
		if err := rows.Scan(&p.Name, &p.Value, &p.Stderr, &p.Min, &p.Max, &p.Vary); err != nil {
			return nil, fmt.Errorf("failed to scan param: %w", err)
		}
		res.Params = append(res.Params, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating params: %w", err)
	}

	return res, nil
}

// ListResults returns all persisted results, most recent first, without
// their parameter sets.
func (r *Repository) ListResults(ctx context.Context) ([]*StoredResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, method, status, chisq, neval, error, started_at, finished_at
		FROM jobs ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var results []*StoredResult
	for rows.Next() {
		var (
			res            StoredResult
			idText         string
			method, status string
		)
		if err := rows.Scan(&idText, &method, &status, &res.ChiSq, &res.NEval, &res.Error, &res.Started, &res.Finished); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		id, err := uuid.Parse(idText)
		if err != nil {
			return nil, fmt.Errorf("failed to parse job id %q: %w", idText, err)
		}
		res.JobID = id
		res.Method = fit.Method(method)
		res.Status = fit.Status(status)
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return results, nil
}

// Close closes the underlying database
func (r *Repository) Close() error {
	return r.db.Close()
}
