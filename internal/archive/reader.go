package archive

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sketchmill/sketchmill/pkg/types"
)

// openReadOnly opens an archive database without creating it. Archives are
// immutable after build; a missing path is an error, not an empty database.
func openReadOnly(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("archive: failed to open database: %w", err)
	}
	return db, nil
}

// CountEvent counts archived rows for one event identifier. It is the exact
// check behind the sidecar's probabilistic answer. Archives built without an
// event_id column return an error.
func CountEvent(ctx context.Context, dbPath, eventID string) (int64, error) {
	db, err := openReadOnly(dbPath)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	query := fmt.Sprintf("SELECT COUNT(*) FROM events WHERE %s = ?", quoteIdentifier(types.ColumnEventID))
	var count int64
	if err := db.QueryRowContext(ctx, query, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("archive: failed to count event rows: %w", err)
	}
	return count, nil
}

// Columns returns the archived column names in table order.
func Columns(ctx context.Context, dbPath string) ([]string, error) {
	db, err := openReadOnly(dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "PRAGMA table_info(events)")
	if err != nil {
		return nil, fmt.Errorf("archive: failed to read table info: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dfltVal sql.NullString
			primary int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltVal, &primary); err != nil {
			return nil, fmt.Errorf("archive: failed to scan table info: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: failed to read table info: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("archive: no events table in %s", dbPath)
	}
	return names, nil
}
