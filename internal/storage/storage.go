package storage

import (
	"context"

	"github.com/evalops/evalsync/internal/storage/sqlite"
	"github.com/evalops/evalsync/internal/types"
)

// Storage defines the interface for sync ledger backends
type Storage interface {
	// Unit State - per-file fingerprints from the last pass that touched them
	GetUnitState(ctx context.Context, path string) (*types.UnitState, error)
	PutUnitState(ctx context.Context, state *types.UnitState) error
	ListUnitStates(ctx context.Context) ([]*types.UnitState, error)
	DeleteUnitState(ctx context.Context, path string) error

	// Runs - one row per sync invocation
	CreateRun(ctx context.Context, run *types.SyncRun) error
	FinishRun(ctx context.Context, run *types.SyncRun) error
	GetRun(ctx context.Context, id string) (*types.SyncRun, error)
	ListRuns(ctx context.Context, limit int) ([]*types.SyncRun, error)
	LatestRun(ctx context.Context) (*types.SyncRun, error)

	// Unit Results - normalized records and scores keyed by (person, year)
	PutUnitResult(ctx context.Context, result *types.UnitResult) error
	GetUnitResult(ctx context.Context, person string, year int) (*types.UnitResult, error)
	ListUnitResults(ctx context.Context) ([]*types.UnitResult, error)
	ListUnitResultsByYear(ctx context.Context, year int) ([]*types.UnitResult, error)
	ListUnitResultsByPerson(ctx context.Context, person string) ([]*types.UnitResult, error)
	DeleteUnitResult(ctx context.Context, person string, year int) error

	// Config
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".evalsync/ledger.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".evalsync/ledger.db",
	}
}

// NewStorage creates a new SQLite storage backend
// The ctx parameter is currently unused but kept for API consistency
// and future extension possibilities
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if cfg.Path == "" {
		cfg.Path = ".evalsync/ledger.db"
	}

	return sqlite.New(cfg.Path)
}
