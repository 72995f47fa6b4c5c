package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrRunNotFound is returned when a run id has no catalog entry.
var ErrRunNotFound = errors.New("run not found")

// Catalog manages run records in catalog.db.
type Catalog interface {
	// RecordRun adds a completed run to the catalog.
	// The run record, its derived columns, and its event identifiers
	// are written in one transaction.
	RecordRun(ctx context.Context, rec *RunRecord) error

	// GetRun retrieves a single run by id, including its derived
	// columns and event identifiers.
	GetRun(ctx context.Context, runID string) (*RunRecord, error)

	// ListRuns returns up to limit runs, newest first.
	// Field and event details are not loaded.
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)

	// FindRunsByEventID returns the runs whose output contains the
	// given event identifier, newest first.
	FindRunsByEventID(ctx context.Context, eventID string) ([]*RunEventMatch, error)

	// RunCount returns the number of recorded runs.
	RunCount(ctx context.Context) (int64, error)

	// Close closes the catalog database connection.
	Close() error
}

// RunRecord represents one enrichment run in the catalog.
// Empty string fields are stored as NULL.
type RunRecord struct {
	RunID          string
	InputPath      string
	OutputPath     string
	ArchivePath    string
	PublishedTo    string
	StartedAt      time.Time
	FinishedAt     time.Time
	InputRows      int64
	Fragments      int64
	ResolvedIDs    int64
	ParsedEvents   int64
	DerivedColumns int64
	OutputColumns  int64
	MinDatetime    string
	MaxDatetime    string
	Fields         []FieldCount
	Events         []EventCount
}

// FieldCount is the number of input rows that populated a derived column.
type FieldCount struct {
	Name string
	Rows int64
}

// EventCount is the number of input rows that resolved to an event identifier.
type EventCount struct {
	EventID string
	Rows    int64
}

// RunEventMatch describes a run that produced a given event identifier.
type RunEventMatch struct {
	RunID     string
	InputPath string
	StartedAt time.Time
	RowCount  int64
}

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db     *sql.DB // Single writer; WAL lets other processes read during a run
	dbPath string
	mu     sync.Mutex

	insertRunStmt *sql.Stmt
}

// NewCatalog creates a new SQLite-based run catalog.
func NewCatalog(dbPath string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // Single writer
	db.SetMaxIdleConns(1)

	catalog := &SQLiteCatalog{
		db:     db,
		dbPath: dbPath,
	}

	if err := catalog.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: failed to initialize schema: %w", err)
	}

	insertStmt, err := db.Prepare(`
		INSERT INTO runs (
			run_id, input_path, output_path, archive_path, published_to,
			started_at, finished_at,
			input_rows, fragments, resolved_ids, parsed_events,
			derived_columns, output_columns,
			min_datetime, max_datetime
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: failed to prepare insert statement: %w", err)
	}
	catalog.insertRunStmt = insertStmt

	return catalog, nil
}

// initSchema creates all required tables and indexes.
func (c *SQLiteCatalog) initSchema() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// RecordRun adds a completed run to the catalog.
func (c *SQLiteCatalog) RecordRun(ctx context.Context, rec *RunRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.StmtContext(ctx, c.insertRunStmt).ExecContext(ctx,
		rec.RunID, rec.InputPath, rec.OutputPath,
		nullable(rec.ArchivePath), nullable(rec.PublishedTo),
		rec.StartedAt.Unix(), rec.FinishedAt.Unix(),
		rec.InputRows, rec.Fragments, rec.ResolvedIDs, rec.ParsedEvents,
		rec.DerivedColumns, rec.OutputColumns,
		nullable(rec.MinDatetime), nullable(rec.MaxDatetime),
	)
	if err != nil {
		return fmt.Errorf("catalog: failed to insert run: %w", err)
	}

	if len(rec.Fields) > 0 {
		fieldStmt, err := tx.PrepareContext(ctx,
			"INSERT INTO run_fields (run_id, field_name, row_count) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("catalog: failed to prepare field insert: %w", err)
		}
		defer fieldStmt.Close()

		for _, fc := range rec.Fields {
			if _, err := fieldStmt.ExecContext(ctx, rec.RunID, fc.Name, fc.Rows); err != nil {
				return fmt.Errorf("catalog: failed to insert run field %s: %w", fc.Name, err)
			}
		}
	}

	if len(rec.Events) > 0 {
		eventStmt, err := tx.PrepareContext(ctx,
			"INSERT INTO run_events (run_id, event_id, row_count) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("catalog: failed to prepare event insert: %w", err)
		}
		defer eventStmt.Close()

		for _, ec := range rec.Events {
			if _, err := eventStmt.ExecContext(ctx, rec.RunID, ec.EventID, ec.Rows); err != nil {
				return fmt.Errorf("catalog: failed to insert run event %s: %w", ec.EventID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: failed to commit transaction: %w", err)
	}

	return nil
}

const selectRunColumns = `
	SELECT run_id, input_path, output_path, archive_path, published_to,
		started_at, finished_at,
		input_rows, fragments, resolved_ids, parsed_events,
		derived_columns, output_columns,
		min_datetime, max_datetime
	FROM runs`

// GetRun retrieves a single run by id with its fields and events.
func (c *SQLiteCatalog) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := c.db.QueryRowContext(ctx, selectRunColumns+" WHERE run_id = ?", runID)

	rec, err := scanRunRecord(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("catalog: failed to scan run: %w", err)
	}

	if rec.Fields, err = c.loadRunFields(ctx, runID); err != nil {
		return nil, err
	}
	if rec.Events, err = c.loadRunEvents(ctx, runID); err != nil {
		return nil, err
	}

	return rec, nil
}

// ListRuns returns up to limit runs, newest first.
func (c *SQLiteCatalog) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := c.db.QueryContext(ctx, selectRunColumns+" ORDER BY started_at DESC, run_id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		rec, err := scanRunRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("catalog: failed to scan run: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: error iterating runs: %w", err)
	}

	return records, nil
}

// FindRunsByEventID returns the runs whose output contains the event identifier.
func (c *SQLiteCatalog) FindRunsByEventID(ctx context.Context, eventID string) ([]*RunEventMatch, error) {
	query := `
		SELECT r.run_id, r.input_path, r.started_at, e.row_count
		FROM run_events e
		JOIN runs r ON r.run_id = e.run_id
		WHERE e.event_id = ?
		ORDER BY r.started_at DESC, r.run_id`

	rows, err := c.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query runs by event id: %w", err)
	}
	defer rows.Close()

	var matches []*RunEventMatch
	for rows.Next() {
		var m RunEventMatch
		var startedAtUnix int64
		if err := rows.Scan(&m.RunID, &m.InputPath, &startedAtUnix, &m.RowCount); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan run match: %w", err)
		}
		m.StartedAt = time.Unix(startedAtUnix, 0)
		matches = append(matches, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: error iterating run matches: %w", err)
	}

	return matches, nil
}

// RunCount returns the number of recorded runs.
func (c *SQLiteCatalog) RunCount(ctx context.Context) (int64, error) {
	var count int64
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("catalog: failed to count runs: %w", err)
	}
	return count, nil
}

// Close closes the catalog database connection.
func (c *SQLiteCatalog) Close() error {
	if c.insertRunStmt != nil {
		c.insertRunStmt.Close()
	}
	return c.db.Close()
}

func (c *SQLiteCatalog) loadRunFields(ctx context.Context, runID string) ([]FieldCount, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT field_name, row_count FROM run_fields WHERE run_id = ? ORDER BY field_name", runID)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query run fields: %w", err)
	}
	defer rows.Close()

	var fields []FieldCount
	for rows.Next() {
		var fc FieldCount
		if err := rows.Scan(&fc.Name, &fc.Rows); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan run field: %w", err)
		}
		fields = append(fields, fc)
	}
	return fields, rows.Err()
}

func (c *SQLiteCatalog) loadRunEvents(ctx context.Context, runID string) ([]EventCount, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT event_id, row_count FROM run_events WHERE run_id = ? ORDER BY event_id", runID)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query run events: %w", err)
	}
	defer rows.Close()

	var events []EventCount
	for rows.Next() {
		var ec EventCount
		if err := rows.Scan(&ec.EventID, &ec.Rows); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan run event: %w", err)
		}
		events = append(events, ec)
	}
	return events, rows.Err()
}

// scanRunRecord scans a runs row using the given scan function.
func scanRunRecord(scan func(...interface{}) error) (*RunRecord, error) {
	var rec RunRecord
	var archivePath, publishedTo, minDatetime, maxDatetime sql.NullString
	var startedAtUnix, finishedAtUnix int64

	err := scan(
		&rec.RunID, &rec.InputPath, &rec.OutputPath, &archivePath, &publishedTo,
		&startedAtUnix, &finishedAtUnix,
		&rec.InputRows, &rec.Fragments, &rec.ResolvedIDs, &rec.ParsedEvents,
		&rec.DerivedColumns, &rec.OutputColumns,
		&minDatetime, &maxDatetime,
	)
	if err != nil {
		return nil, err
	}

	rec.ArchivePath = archivePath.String
	rec.PublishedTo = publishedTo.String
	rec.MinDatetime = minDatetime.String
	rec.MaxDatetime = maxDatetime.String
	rec.StartedAt = time.Unix(startedAtUnix, 0)
	rec.FinishedAt = time.Unix(finishedAtUnix, 0)
	return &rec, nil
}

// nullable converts empty strings to NULL for storage.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
