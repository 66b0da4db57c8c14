package sqlite

// schemaVersion is stamped into the config table the first time a ledger is
// created. Bump it together with any schema change below.
const schemaVersion = "1"

const schema = `
-- Sync state table: one row per source file, fingerprinting the last pass
-- that touched it. The modification time is stored as Unix nanoseconds so
-- the change check survives the round trip exactly.
CREATE TABLE IF NOT EXISTS sync_state (
    path TEXT PRIMARY KEY,
    person TEXT NOT NULL,
    year INTEGER NOT NULL,
    sha256 TEXT NOT NULL,
    size INTEGER NOT NULL,
    mtime INTEGER NOT NULL,
    outcome TEXT NOT NULL CHECK(outcome IN ('processed', 'unchanged', 'issues', 'failed')),
    run_id TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sync_state_person_year ON sync_state(person, year);
CREATE INDEX IF NOT EXISTS idx_sync_state_run ON sync_state(run_id);

-- Runs table: one row per sync invocation with its options and counters
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    data_dir TEXT NOT NULL,
    model TEXT NOT NULL DEFAULT 'nps',
    force INTEGER NOT NULL DEFAULT 0,
    workers INTEGER NOT NULL DEFAULT 0,
    discovered INTEGER NOT NULL DEFAULT 0,
    processed INTEGER NOT NULL DEFAULT 0,
    unchanged INTEGER NOT NULL DEFAULT 0,
    issues INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

-- Unit results table: the normalized record and its computed scores for
-- each (person, year) unit, stored as JSON payloads
CREATE TABLE IF NOT EXISTS unit_results (
    person TEXT NOT NULL,
    year INTEGER NOT NULL,
    path TEXT NOT NULL,
    record_json TEXT,
    scores_json TEXT,
    status TEXT NOT NULL CHECK(status IN ('ok', 'issues', 'error')),
    diagnostics_json TEXT,
    run_id TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (person, year)
);

CREATE INDEX IF NOT EXISTS idx_unit_results_year ON unit_results(year);
CREATE INDEX IF NOT EXISTS idx_unit_results_run ON unit_results(run_id);

-- Config table (tool metadata such as the schema version)
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
