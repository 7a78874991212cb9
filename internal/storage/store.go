// Package storage persists workflow runs and watchlists in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dyike/forexcell/models"
	"github.com/dyike/forexcell/pkg/sqlite"
)

const (
	StatusDone  = "done"
	StatusError = "error"
)

const timeLayout = time.RFC3339Nano

type Store struct {
	db *sql.DB
}

// Open opens the database at dbPath and creates the tables.
func Open(dbPath string) (*Store, error) {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS workflow_runs (
    id TEXT PRIMARY KEY,
    workflow TEXT NOT NULL,
    status TEXT NOT NULL,
    params_json TEXT,
    stored_json TEXT,
    summary_json TEXT,
    error TEXT,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS step_results (
    run_id TEXT NOT NULL REFERENCES workflow_runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    step TEXT NOT NULL,
    type TEXT,
    success INTEGER NOT NULL,
    skipped INTEGER NOT NULL DEFAULT 0,
    result_json TEXT,
    error TEXT,
    duration_ms INTEGER NOT NULL,
    UNIQUE(run_id, step)
);

CREATE TABLE IF NOT EXISTS watchlists (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    is_default INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE(user_id, name)
);

CREATE TABLE IF NOT EXISTS watchlist_items (
    watchlist_id INTEGER NOT NULL REFERENCES watchlists(id) ON DELETE CASCADE,
    ticker TEXT NOT NULL,
    notes TEXT,
    tags_json TEXT,
    added_at TEXT NOT NULL,
    seq INTEGER NOT NULL,
    UNIQUE(watchlist_id, ticker)
);

CREATE INDEX IF NOT EXISTS idx_step_results_run ON step_results(run_id, seq);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// SaveRun inserts or replaces a run and its step results.
func (s *Store) SaveRun(ctx context.Context, run *models.RunReport) error {
	if run == nil || strings.TrimSpace(run.RunID) == "" {
		return fmt.Errorf("run id is required")
	}
	params, err := encodeJSON(run.Params)
	if err != nil {
		return err
	}
	stored, err := encodeJSON(run.Stored)
	if err != nil {
		return err
	}
	summary, err := encodeJSON(run.Summary)
	if err != nil {
		return err
	}
	status := StatusDone
	if !run.Success() {
		status = StatusError
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO workflow_runs (id, workflow, status, params_json, stored_json, summary_json, error, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    workflow=excluded.workflow,
    status=excluded.status,
    params_json=excluded.params_json,
    stored_json=excluded.stored_json,
    summary_json=excluded.summary_json,
    error=excluded.error,
    started_at=excluded.started_at,
    finished_at=excluded.finished_at
`, run.RunID, run.Workflow, status, params, stored, summary, run.Error,
		run.StartedAt.Format(timeLayout), run.FinishedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM step_results WHERE run_id = ?`, run.RunID); err != nil {
		return fmt.Errorf("clear steps: %w", err)
	}
	for seq, name := range run.Order {
		step := run.Results[name]
		if step == nil {
			continue
		}
		result, err := encodeJSON(step.Result)
		if err != nil {
			return fmt.Errorf("step %s: %w", name, err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO step_results (run_id, seq, step, type, success, skipped, result_json, error, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, run.RunID, seq, name, step.Type, step.Success, step.Skipped, result, step.Error, step.DurationMS)
		if err != nil {
			return fmt.Errorf("save step %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// GetRun loads a run with its steps. It returns nil, nil when the run does
// not exist.
func (s *Store) GetRun(ctx context.Context, runID string) (*models.RunReport, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, fmt.Errorf("run id is required")
	}
	row := s.db.QueryRowContext(ctx, `
SELECT id, workflow, params_json, stored_json, summary_json, error, started_at, finished_at
FROM workflow_runs
WHERE id = ?
LIMIT 1
`, runID)

	var (
		run                       models.RunReport
		params, stored, summary   sql.NullString
		runErr, started, finished sql.NullString
	)
	if err := row.Scan(&run.RunID, &run.Workflow, &params, &stored, &summary, &runErr, &started, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	run.Error = runErr.String
	run.StartedAt = parseTime(started.String)
	run.FinishedAt = parseTime(finished.String)
	if err := decodeJSON(params, &run.Params); err != nil {
		return nil, err
	}
	if err := decodeJSON(stored, &run.Stored); err != nil {
		return nil, err
	}
	if err := decodeJSON(summary, &run.Summary); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT step, type, success, skipped, result_json, error, duration_ms
FROM step_results
WHERE run_id = ?
ORDER BY seq ASC
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	run.Results = map[string]*models.StepResult{}
	for rows.Next() {
		var (
			step         models.StepResult
			typ, stepErr sql.NullString
			result       sql.NullString
		)
		if err := rows.Scan(&step.Step, &typ, &step.Success, &step.Skipped, &result, &stepErr, &step.DurationMS); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		step.Type, step.Error = typ.String, stepErr.String
		if err := decodeJSON(result, &step.Result); err != nil {
			return nil, err
		}
		run.Results[step.Step] = &step
		run.Order = append(run.Order, step.Step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list steps rows: %w", err)
	}
	return &run, nil
}

// ListRuns returns the newest runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.RunListItem, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, workflow, status, summary_json, started_at, finished_at
FROM workflow_runs
ORDER BY started_at DESC, rowid DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []models.RunListItem
	for rows.Next() {
		var (
			item              models.RunListItem
			summary           sql.NullString
			started, finished string
		)
		if err := rows.Scan(&item.RunID, &item.Workflow, &item.Status, &summary, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		item.StartedAt, item.FinishedAt = parseTime(started), parseTime(finished)
		if err := decodeJSON(summary, &item.Summary); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs rows: %w", err)
	}
	return out, nil
}

func encodeJSON(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %T: %w", v, err)
	}
	return string(data), nil
}

func decodeJSON(s sql.NullString, out any) error {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(s.String), out); err != nil {
		return fmt.Errorf("decode %T: %w", out, err)
	}
	return nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
