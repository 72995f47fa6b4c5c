package manifest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	catalog, err := NewCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("failed to create catalog: %v", err)
	}
	t.Cleanup(func() { catalog.Close() })
	return catalog
}

func sampleRun(id string, startedAt time.Time) *RunRecord {
	return &RunRecord{
		RunID:          id,
		InputPath:      "/cases/host1/timeline.csv",
		OutputPath:     "/cases/host1/enriched.csv",
		ArchivePath:    "/cases/host1/archive.db",
		PublishedTo:    "s3://timelines/host1",
		StartedAt:      startedAt,
		FinishedAt:     startedAt.Add(42 * time.Second),
		InputRows:      15000,
		Fragments:      4200,
		ResolvedIDs:    4100,
		ParsedEvents:   3900,
		DerivedColumns: 37,
		OutputColumns:  54,
		MinDatetime:    "01/02/2024 03:04:05",
		MaxDatetime:    "06/07/2024 08:09:10",
		Fields: []FieldCount{
			{Name: "4688_NewProcessName", Rows: 1200},
			{Name: "4688_SubjectUserName", Rows: 1200},
		},
		Events: []EventCount{
			{EventID: "4688", Rows: 1200},
			{EventID: "7036", Rows: 900},
		},
	}
}

func TestCatalog_RecordAndGetRun(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	started := time.Now().Truncate(time.Second)
	rec := sampleRun("run-001", started)

	if err := catalog.RecordRun(ctx, rec); err != nil {
		t.Fatalf("failed to record run: %v", err)
	}

	got, err := catalog.GetRun(ctx, "run-001")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}

	if got.RunID != rec.RunID {
		t.Errorf("run_id mismatch: got %s, want %s", got.RunID, rec.RunID)
	}
	if got.InputPath != rec.InputPath {
		t.Errorf("input_path mismatch: got %s, want %s", got.InputPath, rec.InputPath)
	}
	if got.InputRows != rec.InputRows {
		t.Errorf("input_rows mismatch: got %d, want %d", got.InputRows, rec.InputRows)
	}
	if got.ResolvedIDs != rec.ResolvedIDs {
		t.Errorf("resolved_ids mismatch: got %d, want %d", got.ResolvedIDs, rec.ResolvedIDs)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("started_at mismatch: got %v, want %v", got.StartedAt, started)
	}
	if got.MinDatetime != rec.MinDatetime {
		t.Errorf("min_datetime mismatch: got %s, want %s", got.MinDatetime, rec.MinDatetime)
	}
	if got.PublishedTo != rec.PublishedTo {
		t.Errorf("published_to mismatch: got %s, want %s", got.PublishedTo, rec.PublishedTo)
	}

	if len(got.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(got.Fields))
	}
	if got.Fields[0].Name != "4688_NewProcessName" || got.Fields[0].Rows != 1200 {
		t.Errorf("unexpected first field: %+v", got.Fields[0])
	}
	if len(got.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got.Events))
	}
	if got.Events[0].EventID != "4688" {
		t.Errorf("unexpected first event: %+v", got.Events[0])
	}
}

func TestCatalog_GetRunNotFound(t *testing.T) {
	catalog := newTestCatalog(t)

	_, err := catalog.GetRun(context.Background(), "no-such-run")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestCatalog_NullableFieldsRoundTrip(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	rec := sampleRun("run-minimal", time.Now())
	rec.ArchivePath = ""
	rec.PublishedTo = ""
	rec.MinDatetime = ""
	rec.MaxDatetime = ""
	rec.Fields = nil
	rec.Events = nil

	if err := catalog.RecordRun(ctx, rec); err != nil {
		t.Fatalf("failed to record run: %v", err)
	}

	got, err := catalog.GetRun(ctx, "run-minimal")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.ArchivePath != "" || got.PublishedTo != "" {
		t.Errorf("expected empty optional paths, got %q / %q", got.ArchivePath, got.PublishedTo)
	}
	if got.MinDatetime != "" || got.MaxDatetime != "" {
		t.Errorf("expected empty datetime bounds, got %q / %q", got.MinDatetime, got.MaxDatetime)
	}
	if len(got.Fields) != 0 || len(got.Events) != 0 {
		t.Errorf("expected no fields or events, got %d / %d", len(got.Fields), len(got.Events))
	}
}

func TestCatalog_ListRunsNewestFirst(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		rec := sampleRun(id, base.Add(time.Duration(i)*time.Minute))
		rec.Fields = nil
		rec.Events = nil
		if err := catalog.RecordRun(ctx, rec); err != nil {
			t.Fatalf("failed to record run %s: %v", id, err)
		}
	}

	runs, err := catalog.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].RunID != "run-c" || runs[2].RunID != "run-a" {
		t.Errorf("runs not in newest-first order: %s, %s, %s",
			runs[0].RunID, runs[1].RunID, runs[2].RunID)
	}

	limited, err := catalog.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("failed to list limited runs: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 runs with limit, got %d", len(limited))
	}
}

func TestCatalog_FindRunsByEventID(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	withLogon := sampleRun("run-logon", base)
	withLogon.Events = []EventCount{{EventID: "4624", Rows: 50}}
	if err := catalog.RecordRun(ctx, withLogon); err != nil {
		t.Fatalf("failed to record run: %v", err)
	}

	withBoth := sampleRun("run-both", base.Add(time.Minute))
	withBoth.Events = []EventCount{{EventID: "4624", Rows: 10}, {EventID: "4688", Rows: 70}}
	if err := catalog.RecordRun(ctx, withBoth); err != nil {
		t.Fatalf("failed to record run: %v", err)
	}

	without := sampleRun("run-other", base.Add(2*time.Minute))
	without.Events = []EventCount{{EventID: "7036", Rows: 5}}
	if err := catalog.RecordRun(ctx, without); err != nil {
		t.Fatalf("failed to record run: %v", err)
	}

	matches, err := catalog.FindRunsByEventID(ctx, "4624")
	if err != nil {
		t.Fatalf("failed to find runs: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matching runs, got %d", len(matches))
	}
	if matches[0].RunID != "run-both" {
		t.Errorf("expected newest run first, got %s", matches[0].RunID)
	}
	if matches[0].RowCount != 10 {
		t.Errorf("expected row count 10, got %d", matches[0].RowCount)
	}

	none, err := catalog.FindRunsByEventID(ctx, "9999")
	if err != nil {
		t.Fatalf("failed to find runs: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no matches, got %d", len(none))
	}
}

func TestCatalog_RunCount(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	count, err := catalog.RunCount(ctx)
	if err != nil {
		t.Fatalf("failed to count runs: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 runs, got %d", count)
	}

	rec := sampleRun("run-1", time.Now())
	rec.Fields = nil
	rec.Events = nil
	if err := catalog.RecordRun(ctx, rec); err != nil {
		t.Fatalf("failed to record run: %v", err)
	}

	count, err = catalog.RunCount(ctx)
	if err != nil {
		t.Fatalf("failed to count runs: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 run, got %d", count)
	}
}
