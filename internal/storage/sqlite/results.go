package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evalops/evalsync/internal/types"
)

// PutUnitResult inserts or replaces the stored output for a (person, year) unit
func (s *SQLiteStorage) PutUnitResult(ctx context.Context, result *types.UnitResult) error {
	if result == nil {
		return fmt.Errorf("unit result cannot be nil")
	}
	if result.Person == "" {
		return fmt.Errorf("unit result person cannot be empty")
	}
	if !result.Status.IsValid() {
		return fmt.Errorf("invalid file status: %s", result.Status)
	}

	var diagJSON interface{}
	if len(result.Diagnostics) > 0 {
		data, err := json.Marshal(result.Diagnostics)
		if err != nil {
			return fmt.Errorf("failed to marshal diagnostics: %w", err)
		}
		diagJSON = string(data)
	}

	updatedAt := result.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO unit_results (person, year, path, record_json, scores_json,
			status, diagnostics_json, run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (person, year) DO UPDATE SET
			path = excluded.path,
			record_json = excluded.record_json,
			scores_json = excluded.scores_json,
			status = excluded.status,
			diagnostics_json = excluded.diagnostics_json,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at
	`, result.Person, result.Year, result.Path, nullableJSON(result.Record),
		nullableJSON(result.Scores), string(result.Status), diagJSON,
		result.RunID, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to put unit result: %w", err)
	}
	return nil
}

// GetUnitResult returns the stored output for one (person, year) unit
// Returns nil without error when the unit has never been stored
func (s *SQLiteStorage) GetUnitResult(ctx context.Context, person string, year int) (*types.UnitResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT person, year, path, record_json, scores_json, status,
			diagnostics_json, run_id, updated_at
		FROM unit_results
		WHERE person = ? AND year = ?
	`, person, year)

	result, err := scanUnitResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get unit result: %w", err)
	}
	return result, nil
}

// ListUnitResults returns every stored unit ordered by person then year
func (s *SQLiteStorage) ListUnitResults(ctx context.Context) ([]*types.UnitResult, error) {
	return s.listUnitResults(ctx, `
		SELECT person, year, path, record_json, scores_json, status,
			diagnostics_json, run_id, updated_at
		FROM unit_results
		ORDER BY person, year
	`)
}

// ListUnitResultsByYear returns every stored unit for one year ordered by person
func (s *SQLiteStorage) ListUnitResultsByYear(ctx context.Context, year int) ([]*types.UnitResult, error) {
	return s.listUnitResults(ctx, `
		SELECT person, year, path, record_json, scores_json, status,
			diagnostics_json, run_id, updated_at
		FROM unit_results
		WHERE year = ?
		ORDER BY person
	`, year)
}

// ListUnitResultsByPerson returns every stored unit for one person ordered by year
func (s *SQLiteStorage) ListUnitResultsByPerson(ctx context.Context, person string) ([]*types.UnitResult, error) {
	return s.listUnitResults(ctx, `
		SELECT person, year, path, record_json, scores_json, status,
			diagnostics_json, run_id, updated_at
		FROM unit_results
		WHERE person = ?
		ORDER BY year
	`, person)
}

// DeleteUnitResult removes the stored output for one (person, year) unit
// Deleting a unit that was never stored is not an error
func (s *SQLiteStorage) DeleteUnitResult(ctx context.Context, person string, year int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM unit_results WHERE person = ? AND year = ?`, person, year)
	if err != nil {
		return fmt.Errorf("failed to delete unit result: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) listUnitResults(ctx context.Context, query string, args ...interface{}) ([]*types.UnitResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unit results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*types.UnitResult
	for rows.Next() {
		result, err := scanUnitResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unit result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unit results: %w", err)
	}
	return results, nil
}

func scanUnitResult(row rowScanner) (*types.UnitResult, error) {
	var result types.UnitResult
	var status string
	var record, scores, diags []byte

	err := row.Scan(&result.Person, &result.Year, &result.Path, &record,
		&scores, &status, &diags, &result.RunID, &result.UpdatedAt)
	if err != nil {
		return nil, err
	}

	result.Status = types.FileStatus(status)
	if len(record) > 0 {
		result.Record = json.RawMessage(record)
	}
	if len(scores) > 0 {
		result.Scores = json.RawMessage(scores)
	}
	if len(diags) > 0 {
		if err := json.Unmarshal(diags, &result.Diagnostics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal diagnostics: %w", err)
		}
	}
	return &result, nil
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
