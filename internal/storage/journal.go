// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/rigrun-agent/internal/agent"
	"github.com/jeranaias/rigrun-agent/internal/plan"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrRunNotFound   = errors.New("run not found")
	ErrJournalClosed = errors.New("journal closed")
)

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary describes one journaled plan run.
type RunSummary struct {
	ID     string `json:"id"`
	PlanID string `json:"plan_id"`
	Title  string `json:"title"`
	Goal   string `json:"goal,omitempty"`

	// State is the last executor state recorded for the run
	State agent.ExecutorState `json:"state"`

	TotalSteps     int    `json:"total_steps"`
	CompletedSteps int    `json:"completed_steps"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
	DurationMs     int64  `json:"duration_ms"`

	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the latest result was recorded; zero if none
	FinishedAt time.Time `json:"finished_at"`
	EventCount int       `json:"event_count"`
}

// HasResult reports whether a PlanCompleted result has been recorded.
func (r RunSummary) HasResult() bool {
	return !r.FinishedAt.IsZero()
}

// =============================================================================
// JOURNAL
// =============================================================================

// Journal persists executor events per run in a SQLite database.
type Journal struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenJournal opens or creates the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database. Further calls return ErrJournalClosed.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

// SchemaVersion returns the schema version stored in the database.
func (j *Journal) SchemaVersion(ctx context.Context) (int, error) {
	db, err := j.conn()
	if err != nil {
		return 0, err
	}
	var v string
	if err := db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return strconv.Atoi(v)
}

func (j *Journal) conn() (*sql.DB, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil, ErrJournalClosed
	}
	return j.db, nil
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// BeginRun creates a run for p and returns its ID.
func (j *Journal) BeginRun(ctx context.Context, p *plan.Plan, goal string) (string, error) {
	if p == nil {
		return "", errors.New("plan cannot be nil")
	}
	db, err := j.conn()
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, plan_id, title, goal, state, total_steps, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, p.ID, p.Title, goal, agent.StateIdle.String(), len(p.Steps), time.Now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// Record appends ev to the run's event log. StateChanged events update the
// run state and PlanCompleted events update its result.
func (j *Journal) Record(ctx context.Context, runID string, ev agent.Event) error {
	db, err := j.conn()
	if err != nil {
		return err
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE((SELECT MAX(seq) FROM events WHERE run_id = ?), 0) + 1
		FROM runs WHERE id = ?`, runID, runID).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return fmt.Errorf("failed to read sequence: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO events (run_id, seq, type, task_id, time, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, seq, ev.Type.String(), ev.TaskID, ev.Time.UnixNano(), string(payload)); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	switch {
	case ev.Type == agent.EventStateChanged:
		if _, err := tx.ExecContext(ctx, "UPDATE runs SET state = ? WHERE id = ?",
			ev.State.String(), runID); err != nil {
			return fmt.Errorf("failed to update run state: %w", err)
		}
	case ev.Type == agent.EventPlanCompleted && ev.Result != nil:
		r := ev.Result
		if _, err := tx.ExecContext(ctx, `
			UPDATE runs SET completed_steps = ?, total_steps = ?, success = ?, error = ?,
				duration_ms = ?, finished_at = ?
			WHERE id = ?`,
			r.CompletedSteps, r.TotalSteps, r.Success, r.Error, r.DurationMs,
			ev.Time.UnixNano(), runID); err != nil {
			return fmt.Errorf("failed to update run result: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteRun removes a run and its events.
func (j *Journal) DeleteRun(ctx context.Context, runID string) error {
	db, err := j.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// Prune keeps the newest keep runs and deletes the rest, returning how many
// were removed.
func (j *Journal) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	db, err := j.conn()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

const runColumns = `
	id, plan_id, title, goal, state, total_steps, completed_steps, success, error,
	duration_ms, started_at, finished_at,
	(SELECT COUNT(*) FROM events WHERE events.run_id = runs.id)`

// Run returns the summary of one run.
func (j *Journal) Run(ctx context.Context, runID string) (*RunSummary, error) {
	db, err := j.conn()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Runs lists runs newest first. A non-positive limit returns every run.
func (j *Journal) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	db, err := j.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Events returns the run's events in the order they were recorded. When
// types are given only events of those types are returned.
func (j *Journal) Events(ctx context.Context, runID string, types ...agent.EventType) ([]agent.Event, error) {
	if _, err := j.Run(ctx, runID); err != nil {
		return nil, err
	}
	db, err := j.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		"SELECT type, payload FROM events WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	defer rows.Close()

	want := make(map[string]bool, len(types))
	for _, t := range types {
		want[t.String()] = true
	}

	var events []agent.Event
	for rows.Next() {
		var typ, payload string
		if err := rows.Scan(&typ, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if len(want) > 0 && !want[typ] {
			continue
		}
		var ev agent.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunSummary, error) {
	var (
		r          RunSummary
		state      string
		startedAt  int64
		finishedAt sql.NullInt64
	)
	err := s.Scan(&r.ID, &r.PlanID, &r.Title, &r.Goal, &state, &r.TotalSteps, &r.CompletedSteps,
		&r.Success, &r.Error, &r.DurationMs, &startedAt, &finishedAt, &r.EventCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("failed to scan run: %w", err)
	}
	if err := r.State.UnmarshalText([]byte(state)); err != nil {
		return r, err
	}
	r.StartedAt = time.Unix(0, startedAt)
	if finishedAt.Valid {
		r.FinishedAt = time.Unix(0, finishedAt.Int64)
	}
	return r, nil
}
