// Package main implements the sketchmill-catalog binary.
// It inspects the run catalog: recent runs, one run in detail, or the runs
// whose output contains a given event identifier. It also verifies the
// catalog against the artifacts on disk and prunes old runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sketchmill/sketchmill/internal/errors"
	"github.com/sketchmill/sketchmill/internal/manifest"
	"github.com/sketchmill/sketchmill/internal/storage"
)

func main() {
	var (
		catalogPath string
		archiveDir  string
		runID       string
		eventID     string
		limit       int
		verify      bool
		pruneDays   int
		showHelp    bool
	)

	flag.StringVar(&catalogPath, "catalog", "./data/sketchmill/catalog.db", "Run catalog database path")
	flag.StringVar(&archiveDir, "archive-dir", "", "Archive directory for -verify orphan detection")
	flag.StringVar(&runID, "run", "", "Show one run in detail")
	flag.StringVar(&eventID, "event", "", "List runs containing this event identifier")
	flag.IntVar(&limit, "limit", 20, "Maximum runs to list")
	flag.BoolVar(&verify, "verify", false, "Check catalog entries against artifacts on disk")
	flag.IntVar(&pruneDays, "prune-days", 0, "Remove runs older than this many days, archives included")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "sketchmill-catalog - Inspect recorded enrichment runs\n\n")
		fmt.Fprintf(os.Stderr, "Usage: sketchmill-catalog [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExit status for -verify: 0 consistent, 1 issues found, 2 error.\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  sketchmill-catalog -catalog ./runs.db\n")
		fmt.Fprintf(os.Stderr, "  sketchmill-catalog -catalog ./runs.db -run 5f3c…\n")
		fmt.Fprintf(os.Stderr, "  sketchmill-catalog -catalog ./runs.db -event 4688\n")
		fmt.Fprintf(os.Stderr, "  sketchmill-catalog -catalog ./runs.db -verify -archive-dir ./archives\n")
		fmt.Fprintf(os.Stderr, "  sketchmill-catalog -catalog ./runs.db -prune-days 90\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if _, err := os.Stat(catalogPath); err != nil {
		fmt.Fprintf(os.Stderr, "sketchmill-catalog: catalog not found: %s\n", catalogPath)
		os.Exit(2)
	}

	catalog, err := manifest.NewCatalog(catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sketchmill-catalog: %v\n", err)
		os.Exit(2)
	}
	defer catalog.Close()

	ctx := context.Background()

	if verify {
		code := verifyCatalog(ctx, catalog, archiveDir)
		catalog.Close()
		os.Exit(code)
	}

	switch {
	case pruneDays > 0:
		err = pruneRuns(ctx, catalog, pruneDays)
	case runID != "":
		err = showRun(ctx, catalog, runID)
	case eventID != "":
		err = findEvent(ctx, catalog, eventID)
	default:
		err = listRuns(ctx, catalog, limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "sketchmill-catalog: %v\n", err)
		os.Exit(2)
	}
}

func listRuns(ctx context.Context, catalog manifest.Catalog, limit int) error {
	total, err := catalog.RunCount(ctx)
	if err != nil {
		return err
	}
	runs, err := catalog.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	fmt.Printf("%d recorded runs, showing %d\n\n", total, len(runs))
	for _, run := range runs {
		fmt.Printf("%s  %s\n", run.RunID, humanize.Time(run.StartedAt))
		fmt.Printf("    input:  %s\n", run.InputPath)
		fmt.Printf("    rows: %s  parsed: %s  columns: %d\n",
			humanize.Comma(run.InputRows), humanize.Comma(run.ParsedEvents), run.OutputColumns)
	}
	return nil
}

func showRun(ctx context.Context, catalog manifest.Catalog, runID string) error {
	run, err := catalog.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, manifest.ErrRunNotFound) {
			return fmt.Errorf("run %s not found", runID)
		}
		return err
	}

	fmt.Printf("Run %s\n", run.RunID)
	fmt.Printf("  started:   %s (%s)\n", run.StartedAt.Format(time.RFC3339), humanize.Time(run.StartedAt))
	fmt.Printf("  duration:  %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	fmt.Printf("  input:     %s\n", run.InputPath)
	fmt.Printf("  output:    %s\n", run.OutputPath)
	if run.ArchivePath != "" {
		fmt.Printf("  archive:   %s\n", run.ArchivePath)
	}
	if run.PublishedTo != "" {
		fmt.Printf("  published: %s\n", run.PublishedTo)
	}
	fmt.Printf("  rows: %s  fragments: %s  resolved: %s  parsed: %s\n",
		humanize.Comma(run.InputRows), humanize.Comma(run.Fragments),
		humanize.Comma(run.ResolvedIDs), humanize.Comma(run.ParsedEvents))
	fmt.Printf("  columns: %d derived, %d total\n", run.DerivedColumns, run.OutputColumns)
	if run.MinDatetime != "" {
		fmt.Printf("  window: %s .. %s\n", run.MinDatetime, run.MaxDatetime)
	}

	if len(run.Events) > 0 {
		fmt.Printf("\n  Event kinds:\n")
		for _, ev := range run.Events {
			fmt.Printf("    %-8s %s rows\n", ev.EventID, humanize.Comma(ev.Rows))
		}
	}
	if len(run.Fields) > 0 {
		fmt.Printf("\n  Derived columns:\n")
		for _, fc := range run.Fields {
			fmt.Printf("    %-40s %s rows\n", fc.Name, humanize.Comma(fc.Rows))
		}
	}
	return nil
}

func findEvent(ctx context.Context, catalog manifest.Catalog, eventID string) error {
	matches, err := catalog.FindRunsByEventID(ctx, eventID)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Printf("no runs contain event %s\n", eventID)
		return nil
	}

	fmt.Printf("%d runs contain event %s\n\n", len(matches), eventID)
	for _, m := range matches {
		fmt.Printf("%s  %s\n", m.RunID, humanize.Time(m.StartedAt))
		fmt.Printf("    input: %s  rows: %s\n", m.InputPath, humanize.Comma(m.RowCount))
	}
	return nil
}

func verifyCatalog(ctx context.Context, catalog *manifest.SQLiteCatalog, archiveDir string) int {
	report, err := manifest.Reconcile(ctx, catalog, archiveDir, nil, storage.Location{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sketchmill-catalog: %v\n", err)
		return 2
	}

	fmt.Printf("checked %d runs, %d archive files\n", report.TotalRuns, report.ArchiveFiles)

	if !report.HasIssues() {
		fmt.Println("catalog is consistent")
		return 0
	}

	for _, ref := range report.MissingArchives {
		fmt.Printf("missing archive:  run %s  %s\n", ref.RunID, ref.Path)
	}
	for _, ref := range report.MissingSidecars {
		fmt.Printf("missing sidecar:  run %s  %s\n", ref.RunID, ref.Path)
	}
	for _, path := range report.OrphanedArchives {
		fmt.Printf("orphaned archive: %s\n", path)
	}
	for _, ref := range report.MissingPublished {
		fmt.Printf("missing publish:  run %s  %s\n", ref.RunID, ref.Path)
	}
	return 1
}

func pruneRuns(ctx context.Context, catalog *manifest.SQLiteCatalog, days int) error {
	cutoff := time.Now().AddDate(0, 0, -days)
	result, err := manifest.NewPruner(catalog).PruneBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	if len(result.Pruned) == 0 {
		fmt.Printf("no runs older than %d days (%d scanned)\n", days, result.RunsScanned)
		return nil
	}

	for _, run := range result.Pruned {
		fmt.Printf("pruned %s  started %s\n", run.RunID, humanize.Time(run.StartedAt))
	}
	fmt.Printf("removed %d of %d runs, %d archives, %s reclaimed\n",
		len(result.Pruned), result.RunsScanned,
		result.ArchivesRemoved, humanize.Bytes(uint64(result.BytesReclaimed)))
	return nil
}
