// Package manifest provides the run catalog for tracking enrichment runs.
package manifest

// Schema contains the SQL schema definitions for the run catalog (catalog.db).
// The run catalog is a SQLite database that records every enrichment run
// together with the derived columns and event identifiers it produced.

// CreateRunsTableSQL creates the core runs table.
// One row per enrichment run, including counter totals and the datetime
// bounds observed in the input.
const CreateRunsTableSQL = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    input_path TEXT NOT NULL,
    output_path TEXT NOT NULL,
    archive_path TEXT,
    published_to TEXT,
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL,
    input_rows INTEGER NOT NULL,
    fragments INTEGER NOT NULL,
    resolved_ids INTEGER NOT NULL,
    parsed_events INTEGER NOT NULL,
    derived_columns INTEGER NOT NULL,
    output_columns INTEGER NOT NULL,
    min_datetime TEXT,
    max_datetime TEXT
)`

// CreateRunFieldsTableSQL creates the run_fields table.
// One row per derived column per run, with the number of input rows
// that populated it.
const CreateRunFieldsTableSQL = `
CREATE TABLE IF NOT EXISTS run_fields (
    run_id TEXT NOT NULL,
    field_name TEXT NOT NULL,
    row_count INTEGER NOT NULL,
    PRIMARY KEY (run_id, field_name),
    FOREIGN KEY (run_id) REFERENCES runs(run_id)
)`

// CreateRunEventsTableSQL creates the run_events table.
// One row per resolved event identifier per run, with the number of
// input rows it resolved from.
const CreateRunEventsTableSQL = `
CREATE TABLE IF NOT EXISTS run_events (
    run_id TEXT NOT NULL,
    event_id TEXT NOT NULL,
    row_count INTEGER NOT NULL,
    PRIMARY KEY (run_id, event_id),
    FOREIGN KEY (run_id) REFERENCES runs(run_id)
)`

// CreateCatalogIndexesSQL creates indexes for the catalog's cross-run lookups.
var CreateCatalogIndexesSQL = []string{
	// Index for run listings ordered by recency
	`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

	// Index for "which runs saw this event id" lookups
	`CREATE INDEX IF NOT EXISTS idx_run_events_event ON run_events(event_id)`,

	// Index for "which runs produced this derived column" lookups
	`CREATE INDEX IF NOT EXISTS idx_run_fields_name ON run_fields(field_name)`,
}

// AllSchemaSQL returns all SQL statements needed to initialize the run catalog.
func AllSchemaSQL() []string {
	statements := []string{
		CreateRunsTableSQL,
		CreateRunFieldsTableSQL,
		CreateRunEventsTableSQL,
	}
	statements = append(statements, CreateCatalogIndexesSQL...)
	return statements
}
