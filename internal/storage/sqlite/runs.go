package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/evalops/evalsync/internal/types"
)

// CreateRun inserts the row for a sync run that has just started
func (s *SQLiteStorage) CreateRun(ctx context.Context, run *types.SyncRun) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}
	if run.ID == "" {
		return fmt.Errorf("run ID cannot be empty")
	}

	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, data_dir, model, force, workers,
			discovered, processed, unchanged, issues, failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, startedAt, nullableTime(run.FinishedAt), run.DataDir, string(run.Model),
		run.Force, run.Workers, run.Discovered, run.Processed, run.Unchanged,
		run.Issues, run.Failed, nullableString(run.Error))
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun writes the final counters and finish time for a run
func (s *SQLiteStorage) FinishRun(ctx context.Context, run *types.SyncRun) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}

	finishedAt := run.FinishedAt
	if finishedAt == nil {
		now := time.Now().UTC()
		finishedAt = &now
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, discovered = ?, processed = ?, unchanged = ?,
			issues = ?, failed = ?, error = ?
		WHERE id = ?
	`, *finishedAt, run.Discovered, run.Processed, run.Unchanged,
		run.Issues, run.Failed, nullableString(run.Error), run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}
	return nil
}

// GetRun returns one run by ID
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*types.SyncRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, data_dir, model, force, workers,
			discovered, processed, unchanged, issues, failed, error
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]*types.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, data_dir, model, force, workers,
			discovered, processed, unchanged, issues, failed, error
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*types.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recently started run
// Returns nil without error when no run has been recorded yet
func (s *SQLiteStorage) LatestRun(ctx context.Context) (*types.SyncRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, data_dir, model, force, workers,
			discovered, processed, unchanged, issues, failed, error
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

func scanRun(row rowScanner) (*types.SyncRun, error) {
	var run types.SyncRun
	var model string
	var finishedAt sql.NullTime
	var errText sql.NullString

	err := row.Scan(&run.ID, &run.StartedAt, &finishedAt, &run.DataDir, &model,
		&run.Force, &run.Workers, &run.Discovered, &run.Processed,
		&run.Unchanged, &run.Issues, &run.Failed, &errText)
	if err != nil {
		return nil, err
	}

	run.Model = types.Model(model)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	if errText.Valid {
		run.Error = errText.String
	}
	return &run, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
