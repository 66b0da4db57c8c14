package types

import (
	"encoding/json"
	"time"
)

// UnitState is the persisted fingerprint of one source file, written at the
// end of the sync pass that last touched it.
type UnitState struct {
	Path      string      `json:"path"`
	Person    string      `json:"person"`
	Year      int         `json:"year"`
	SHA256    string      `json:"sha256"`
	Size      int64       `json:"size"`
	ModTime   time.Time   `json:"mtime"`
	Outcome   UnitOutcome `json:"outcome"`
	RunID     string      `json:"run_id"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Unchanged reports whether a file with the given size and modification time
// can be assumed identical without hashing it again.
func (s *UnitState) Unchanged(size int64, modTime time.Time) bool {
	return s.Size == size && s.ModTime.Equal(modTime)
}

// SyncRun records one sync invocation: the options it ran with and the
// outcome counters it finished with.
type SyncRun struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DataDir    string     `json:"data_dir"`
	Model      Model      `json:"model"`
	Force      bool       `json:"force"`
	Workers    int        `json:"workers"`
	Discovered int        `json:"discovered"`
	Processed  int        `json:"processed"`
	Unchanged  int        `json:"unchanged"`
	Issues     int        `json:"issues"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
}

// Duration returns how long the run took, or zero if it has not finished.
func (r *SyncRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// UnitResult is the persisted output for one (person, year) unit: the
// normalized record plus its computed scores, both stored as JSON so the
// ledger never needs a schema migration when the score shape grows.
type UnitResult struct {
	Person      string          `json:"person"`
	Year        int             `json:"year"`
	Path        string          `json:"path"`
	Record      json.RawMessage `json:"record,omitempty"`
	Scores      json.RawMessage `json:"scores,omitempty"`
	Status      FileStatus      `json:"status"`
	Diagnostics []Diagnostic    `json:"diagnostics,omitempty"`
	RunID       string          `json:"run_id"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// DecodeRecord unmarshals the stored record payload.
func (u *UnitResult) DecodeRecord() (*PersonYearRecord, error) {
	if len(u.Record) == 0 {
		return nil, nil
	}
	var rec PersonYearRecord
	if err := json.Unmarshal(u.Record, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
