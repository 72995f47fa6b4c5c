package manifest

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sketchmill/sketchmill/internal/archive"
)

// Pruner removes old runs from the catalog. Archive databases and their
// sidecars referenced by pruned runs are removed along with the rows;
// published outputs are the deliverable and are never touched.
type Pruner struct {
	catalog *SQLiteCatalog
}

// NewPruner creates a run pruner over the given catalog.
func NewPruner(catalog *SQLiteCatalog) *Pruner {
	return &Pruner{catalog: catalog}
}

// PruneResult describes one retention pass.
type PruneResult struct {
	// Pruned holds the removed run records, oldest first.
	Pruned []*RunRecord
	// RunsScanned is the number of runs in the catalog before the pass.
	RunsScanned int
	// ArchivesRemoved counts archive databases deleted from disk.
	ArchivesRemoved int
	// BytesReclaimed is the total size of removed archive files.
	BytesReclaimed int64
}

// RunsBefore returns the runs started before the cutoff, oldest first.
// Field and event details are not loaded.
func (p *Pruner) RunsBefore(ctx context.Context, cutoff time.Time) ([]*RunRecord, error) {
	rows, err := p.catalog.db.QueryContext(ctx,
		selectRunColumns+" WHERE started_at < ? ORDER BY started_at, run_id", cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("retention: failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		rec, err := scanRunRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("retention: failed to scan run: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("retention: error iterating runs: %w", err)
	}

	return records, nil
}

// PruneBefore removes every run started before the cutoff, including its
// derived column and event identifier rows. Archive files referenced by
// the pruned runs are deleted afterwards; files already gone are skipped.
func (p *Pruner) PruneBefore(ctx context.Context, cutoff time.Time) (*PruneResult, error) {
	total, err := p.catalog.RunCount(ctx)
	if err != nil {
		return nil, err
	}

	candidates, err := p.RunsBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	result := &PruneResult{
		Pruned:      candidates,
		RunsScanned: int(total),
	}
	if len(candidates) == 0 {
		return result, nil
	}

	if err := p.deleteRuns(ctx, candidates); err != nil {
		return nil, err
	}

	for _, rec := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if rec.ArchivePath == "" {
			continue
		}
		removed, bytes, err := removeArchiveFiles(rec.ArchivePath)
		if err != nil {
			return result, fmt.Errorf("retention: failed to remove archive for run %s: %w", rec.RunID, err)
		}
		if removed {
			result.ArchivesRemoved++
		}
		result.BytesReclaimed += bytes
	}

	return result, nil
}

// deleteRuns removes the catalog rows for the given runs in one transaction.
func (p *Pruner) deleteRuns(ctx context.Context, runs []*RunRecord) error {
	p.catalog.mu.Lock()
	defer p.catalog.mu.Unlock()

	tx, err := p.catalog.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("retention: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM run_fields WHERE run_id = ?",
		"DELETE FROM run_events WHERE run_id = ?",
		"DELETE FROM runs WHERE run_id = ?",
	} {
		prepared, err := tx.PrepareContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("retention: failed to prepare delete: %w", err)
		}
		for _, rec := range runs {
			if _, err := prepared.ExecContext(ctx, rec.RunID); err != nil {
				prepared.Close()
				return fmt.Errorf("retention: failed to delete run %s: %w", rec.RunID, err)
			}
		}
		prepared.Close()
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("retention: failed to commit transaction: %w", err)
	}
	return nil
}

// removeArchiveFiles deletes an archive database and its sidecar.
// Returns whether the database existed and the bytes freed.
func removeArchiveFiles(dbPath string) (bool, int64, error) {
	var bytes int64
	removed := false

	for _, path := range []string{dbPath, archive.MetadataPath(dbPath)} {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return removed, bytes, err
		}
		if err := os.Remove(path); err != nil {
			return removed, bytes, err
		}
		bytes += info.Size()
		if path == dbPath {
			removed = true
		}
	}

	return removed, bytes, nil
}
