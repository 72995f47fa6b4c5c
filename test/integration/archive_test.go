package integration

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sketchmill/sketchmill/internal/archive"
	"github.com/sketchmill/sketchmill/internal/config"
)

// TestArchiveMatchesOutput verifies that the archive built during a run
// answers queries consistently with the CSV the run wrote.
func TestArchiveMatchesOutput(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "timeline.csv")
	output := filepath.Join(root, "enriched.csv")
	synthesizeTimeline(t, input)

	cfg := config.DefaultConfig()
	cfg.WorkDir = filepath.Join(root, "work")
	cfg.Archive.Dir = filepath.Join(root, "archives")

	report := runPipeline(t, cfg, input, output)
	if report.ArchivePath == "" {
		t.Fatal("report has no archive path")
	}

	rows := readEnriched(t, output)
	ctx := context.Background()

	columns, err := archive.Columns(ctx, report.ArchivePath)
	if err != nil {
		t.Fatalf("Columns() error: %v", err)
	}
	if !reflect.DeepEqual(columns, rows[0]) {
		t.Errorf("archived columns = %v, want output header %v", columns, rows[0])
	}

	count, err := archive.CountEvent(ctx, report.ArchivePath, "4688")
	if err != nil {
		t.Fatalf("CountEvent() error: %v", err)
	}
	if count != 40 {
		t.Errorf("CountEvent(4688) = %d, want 40", count)
	}

	sidecar, err := archive.ReadSidecarFromFile(archive.MetadataPath(report.ArchivePath))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	if sidecar.RunID != report.RunID {
		t.Errorf("sidecar run id = %q, want %q", sidecar.RunID, report.RunID)
	}
	if sidecar.RowCount != int64(len(rows)-1) {
		t.Errorf("sidecar rows = %d, want %d", sidecar.RowCount, len(rows)-1)
	}

	// Fragment-backed events pass the filter; 1074 resolved only from a
	// blob pair, so no archived row carries it.
	for _, eventID := range []string{"4688", "7036"} {
		might, err := sidecar.MightContainEvent(eventID)
		if err != nil {
			t.Fatalf("MightContainEvent(%s) error: %v", eventID, err)
		}
		if !might {
			t.Errorf("MightContainEvent(%s) = false, want true", eventID)
		}
	}
	might, err := sidecar.MightContainEvent("1074")
	if err != nil {
		t.Fatalf("MightContainEvent(1074) error: %v", err)
	}
	if might {
		count, err := archive.CountEvent(ctx, report.ArchivePath, "1074")
		if err != nil {
			t.Fatalf("CountEvent(1074) error: %v", err)
		}
		if count != 0 {
			t.Errorf("CountEvent(1074) = %d, want 0", count)
		}
	}
}
