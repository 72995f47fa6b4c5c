package manifest

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sketchmill/sketchmill/internal/archive"
	"github.com/sketchmill/sketchmill/internal/storage"
)

// ReconciliationReport contains the results of a catalog-artifact reconciliation.
type ReconciliationReport struct {
	// MissingArchives are runs whose archive database no longer exists on disk.
	MissingArchives []ArtifactRef
	// MissingSidecars are runs whose archive exists but whose sidecar is gone.
	MissingSidecars []ArtifactRef
	// OrphanedArchives are archive databases with no corresponding run.
	OrphanedArchives []string
	// MissingPublished are runs whose publish destination holds no objects.
	MissingPublished []ArtifactRef
	// TotalRuns is the number of catalog runs checked.
	TotalRuns int
	// ArchiveFiles is the number of archive databases found on disk.
	ArchiveFiles int
	// RunAt is when the reconciliation was performed.
	RunAt time.Time
}

// ArtifactRef names an artifact a run record points at.
type ArtifactRef struct {
	RunID string
	Path  string
}

// HasIssues returns true if the report contains any missing or orphaned artifacts.
func (r *ReconciliationReport) HasIssues() bool {
	return len(r.MissingArchives) > 0 ||
		len(r.MissingSidecars) > 0 ||
		len(r.OrphanedArchives) > 0 ||
		len(r.MissingPublished) > 0
}

// Reconcile checks consistency between the run catalog and the artifacts it
// references. It detects dangling references (runs pointing at archives or
// publish destinations that no longer exist) and orphaned archive databases
// (files in archiveDir no run knows about). An empty archiveDir skips the
// orphan scan; a nil store skips the publish check.
func Reconcile(ctx context.Context, catalog *SQLiteCatalog, archiveDir string, store storage.ObjectStorage, publish storage.Location) (*ReconciliationReport, error) {
	report := &ReconciliationReport{
		RunAt: time.Now(),
	}

	runs, err := allRuns(ctx, catalog)
	if err != nil {
		return nil, err
	}
	report.TotalRuns = len(runs)

	// Archives referenced by runs must exist, sidecar included.
	knownArchives := make(map[string]string) // base name -> run_id
	for _, rec := range runs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if rec.ArchivePath == "" {
			continue
		}
		knownArchives[filepath.Base(rec.ArchivePath)] = rec.RunID

		if _, err := os.Stat(rec.ArchivePath); os.IsNotExist(err) {
			report.MissingArchives = append(report.MissingArchives, ArtifactRef{
				RunID: rec.RunID,
				Path:  rec.ArchivePath,
			})
			continue
		} else if err != nil {
			return nil, fmt.Errorf("reconciliation: failed to check archive %s: %w", rec.ArchivePath, err)
		}

		sidecar := archive.MetadataPath(rec.ArchivePath)
		if _, err := os.Stat(sidecar); os.IsNotExist(err) {
			report.MissingSidecars = append(report.MissingSidecars, ArtifactRef{
				RunID: rec.RunID,
				Path:  sidecar,
			})
		} else if err != nil {
			return nil, fmt.Errorf("reconciliation: failed to check sidecar %s: %w", sidecar, err)
		}
	}

	// Archive databases on disk must belong to a run.
	if archiveDir != "" {
		entries, err := os.ReadDir(archiveDir)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reconciliation: failed to list archive directory: %w", err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasPrefix(name, "archive-") || !strings.HasSuffix(name, ".db") {
				continue
			}
			report.ArchiveFiles++
			if _, tracked := knownArchives[name]; !tracked {
				report.OrphanedArchives = append(report.OrphanedArchives, filepath.Join(archiveDir, name))
			}
		}
	}

	// Published runs must still have objects at their destination.
	if store != nil {
		for _, rec := range runs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if rec.PublishedTo == "" {
				continue
			}
			prefix := publish.ObjectPath(path.Join("runs", rec.RunID))
			objects, err := store.ListObjects(ctx, prefix)
			if err != nil {
				return nil, fmt.Errorf("reconciliation: failed to list published objects for run %s: %w", rec.RunID, err)
			}
			if len(objects) == 0 {
				report.MissingPublished = append(report.MissingPublished, ArtifactRef{
					RunID: rec.RunID,
					Path:  rec.PublishedTo,
				})
			}
		}
	}

	return report, nil
}

// allRuns returns every run in the catalog, oldest first, without field
// or event details.
func allRuns(ctx context.Context, c *SQLiteCatalog) ([]*RunRecord, error) {
	rows, err := c.db.QueryContext(ctx, selectRunColumns+" ORDER BY started_at, run_id")
	if err != nil {
		return nil, fmt.Errorf("reconciliation: failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		rec, err := scanRunRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("reconciliation: failed to scan run: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
