// Package archive builds immutable SQLite archives of enriched runs.
//
// An archive is a single-table database holding every output row under the
// finalized column set, plus a .meta.json sidecar that answers containment
// and time-range questions without opening SQLite.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sketchmill/sketchmill/internal/schema"
	"github.com/sketchmill/sketchmill/pkg/types"
)

// ArchiveInfo describes a created archive and its sidecar.
type ArchiveInfo struct {
	ArchiveID    string
	RunID        string
	SQLitePath   string
	MetadataPath string
	RowCount     int64
	SizeBytes    int64
	CreatedAt    time.Time
}

// Builder creates archive databases under one output directory.
type Builder struct {
	outputDir string
}

// NewBuilder creates a builder writing into outputDir.
func NewBuilder(outputDir string) *Builder {
	return &Builder{outputDir: outputDir}
}

// Build archives the enriched rows of one run. Columns is the finalized
// output schema; every record is stored under every column, missing cells as
// empty strings. The xml_string column is stored snappy-compressed.
// Rebuilding the same run replaces its previous archive.
func (b *Builder) Build(ctx context.Context, runID string, columns []string, records []types.Record) (*ArchiveInfo, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("archive: cannot build archive with no rows")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("archive: cannot build archive with no columns")
	}

	archiveID := "archive-" + runID
	createdAt := time.Now()

	if err := os.MkdirAll(b.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("archive: failed to create output directory: %w", err)
	}

	sqlitePath := filepath.Clean(filepath.Join(b.outputDir, archiveID+".db"))
	if err := os.Remove(sqlitePath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("archive: failed to remove previous archive: %w", err)
	}

	db, err := sql.Open("sqlite3", sqlitePath)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to create database: %w", err)
	}
	defer db.Close()

	// WAL keeps the bulk insert fast; the build switches back to DELETE
	// before closing so the archive is a single immutable file.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("archive: failed to set journal mode: %w", err)
	}

	// Column names are quoted everywhere: derived names start with digits.
	defs := make([]string, len(columns))
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, col := range columns {
		colType := "TEXT"
		if col == types.ColumnXMLString {
			colType = "BLOB"
		}
		quoted[i] = quoteIdentifier(col)
		defs[i] = quoted[i] + " " + colType
		marks[i] = "?"
	}

	createTableSQL := fmt.Sprintf("CREATE TABLE events (%s)", strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("archive: failed to create events table: %w", err)
	}

	for _, idx := range indexStatements(columns) {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return nil, fmt.Errorf("archive: failed to create index: %w", err)
		}
	}

	insertSQL := fmt.Sprintf("INSERT INTO events (%s) VALUES (%s)",
		strings.Join(quoted, ", "), strings.Join(marks, ", "))
	stmt, err := db.PrepareContext(ctx, insertSQL)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	stats := NewTracker(len(records))
	args := make([]interface{}, len(columns))
	for _, record := range records {
		for i, col := range columns {
			value := record[col]
			if col == types.ColumnXMLString {
				if value == "" {
					args[i] = nil
				} else {
					args[i] = snappy.Encode(nil, []byte(value))
				}
				continue
			}
			args[i] = value
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return nil, fmt.Errorf("archive: failed to insert row: %w", err)
		}
		stats.Observe(record)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("archive: failed to checkpoint WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		return nil, fmt.Errorf("archive: failed to set journal mode to DELETE: %w", err)
	}
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("archive: failed to close database: %w", err)
	}

	fileInfo, err := os.Stat(sqlitePath)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to stat database file: %w", err)
	}

	sidecar := &Sidecar{
		ArchiveID:        archiveID,
		RunID:            runID,
		RowCount:         stats.RowCount(),
		SizeBytes:        fileInfo.Size(),
		MinDatetime:      stats.MinDatetime(),
		MaxDatetime:      stats.MaxDatetime(),
		DistinctEventIDs: stats.DistinctEventIDs(),
		CreatedAt:        createdAt.Unix(),
	}
	if stats.DistinctEventIDs() > 0 {
		sidecar.EventIDFilter = stats.Filter().Encode()
	}

	metadataPath := MetadataPath(sqlitePath)
	if err := sidecar.WriteToFile(metadataPath); err != nil {
		return nil, err
	}

	return &ArchiveInfo{
		ArchiveID:    archiveID,
		RunID:        runID,
		SQLitePath:   sqlitePath,
		MetadataPath: metadataPath,
		RowCount:     stats.RowCount(),
		SizeBytes:    fileInfo.Size(),
		CreatedAt:    createdAt,
	}, nil
}

// indexStatements returns index DDL for the queryable columns present in the
// schema. Runs without resolved events have neither column and get no index.
func indexStatements(columns []string) []string {
	var stmts []string
	for _, col := range columns {
		switch col {
		case types.ColumnEventID:
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX idx_events_event_id ON events(%s)", quoteIdentifier(col)))
		case schema.ColumnDatetime:
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX idx_events_datetime ON events(%s)", quoteIdentifier(col)))
		}
	}
	return stmts
}

// quoteIdentifier wraps a column name in double quotes for SQLite DDL and
// doubles any embedded quote.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
