package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/evalops/evalsync/internal/types"
)

// GetUnitState returns the stored fingerprint for a source file
// Returns nil without error when the file has never been synced
func (s *SQLiteStorage) GetUnitState(ctx context.Context, path string) (*types.UnitState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, person, year, sha256, size, mtime, outcome, run_id, updated_at
		FROM sync_state
		WHERE path = ?
	`, path)

	state, err := scanUnitState(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get unit state: %w", err)
	}
	return state, nil
}

// PutUnitState inserts or replaces the fingerprint row for a source file
func (s *SQLiteStorage) PutUnitState(ctx context.Context, state *types.UnitState) error {
	if state == nil {
		return fmt.Errorf("unit state cannot be nil")
	}
	if !state.Outcome.IsValid() {
		return fmt.Errorf("invalid unit outcome: %s", state.Outcome)
	}

	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (path, person, year, sha256, size, mtime, outcome, run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (path) DO UPDATE SET
			person = excluded.person,
			year = excluded.year,
			sha256 = excluded.sha256,
			size = excluded.size,
			mtime = excluded.mtime,
			outcome = excluded.outcome,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at
	`, state.Path, state.Person, state.Year, state.SHA256, state.Size,
		state.ModTime.UnixNano(), string(state.Outcome), state.RunID, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to put unit state: %w", err)
	}
	return nil
}

// ListUnitStates returns every stored fingerprint ordered by path
func (s *SQLiteStorage) ListUnitStates(ctx context.Context) ([]*types.UnitState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, person, year, sha256, size, mtime, outcome, run_id, updated_at
		FROM sync_state
		ORDER BY path
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unit states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []*types.UnitState
	for rows.Next() {
		state, err := scanUnitState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unit state: %w", err)
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unit states: %w", err)
	}
	return states, nil
}

// DeleteUnitState removes the fingerprint row for a source file
// Deleting a path that was never synced is not an error
func (s *SQLiteStorage) DeleteUnitState(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_state WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("failed to delete unit state: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUnitState(row rowScanner) (*types.UnitState, error) {
	var state types.UnitState
	var outcome string
	var mtimeNS int64

	err := row.Scan(&state.Path, &state.Person, &state.Year, &state.SHA256,
		&state.Size, &mtimeNS, &outcome, &state.RunID, &state.UpdatedAt)
	if err != nil {
		return nil, err
	}

	state.ModTime = time.Unix(0, mtimeNS)
	state.Outcome = types.UnitOutcome(outcome)
	return &state, nil
}
