// Package main implements the sketchmill-archive binary.
// It inspects a run archive: the sidecar summary by default, or whether the
// archive holds a given event identifier. With -find it searches every
// archive published at a storage location, screening by sidecar filters so
// only promising archives are downloaded.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sketchmill/sketchmill/internal/archive"
	"github.com/sketchmill/sketchmill/internal/errors"
	"github.com/sketchmill/sketchmill/internal/storage"
)

func main() {
	var (
		eventID     string
		findEvent   string
		from        string
		cacheDir    string
		concurrency int
		s3Region    string
		s3Endpoint  string
		showHelp    bool
	)

	flag.StringVar(&eventID, "contains", "", "Check whether the archive holds this event identifier")
	flag.StringVar(&findEvent, "find", "", "Search published archives for this event identifier")
	flag.StringVar(&from, "from", "", "Publish location to search (s3://bucket/prefix or a directory)")
	flag.StringVar(&cacheDir, "cache-dir", "", "Reuse downloads across searches (default: fresh temp dir)")
	flag.IntVar(&concurrency, "concurrency", 4, "Parallel downloads for -find")
	flag.StringVar(&s3Region, "s3-region", "", "S3 region for -from (default: AWS config)")
	flag.StringVar(&s3Endpoint, "s3-endpoint", "", "Custom S3 endpoint for -from (MinIO, LocalStack)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "sketchmill-archive - Inspect run archives\n\n")
		fmt.Fprintf(os.Stderr, "Usage: sketchmill-archive [options] <archive.db>\n")
		fmt.Fprintf(os.Stderr, "       sketchmill-archive -find <event> -from <location>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  sketchmill-archive ./archives/archive-5f3c.db\n")
		fmt.Fprintf(os.Stderr, "  sketchmill-archive -contains 4688 ./archives/archive-5f3c.db\n")
		fmt.Fprintf(os.Stderr, "  sketchmill-archive -find 4688 -from s3://timelines/cases\n")
		fmt.Fprintf(os.Stderr, "  sketchmill-archive -find 7036 -from ./published -cache-dir ./cache\n")
		fmt.Fprintf(os.Stderr, "\nWith -contains and -find the exit status is 0 when the event is\n")
		fmt.Fprintf(os.Stderr, "present, 1 when absent, 2 on error.\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	ctx := context.Background()

	if findEvent != "" {
		if from == "" || flag.NArg() != 0 {
			flag.Usage()
			os.Exit(2)
		}
		os.Exit(find(ctx, findEvent, from, cacheDir, concurrency, s3Region, s3Endpoint))
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	dbPath := flag.Arg(0)

	if eventID != "" {
		os.Exit(contains(ctx, dbPath, eventID))
	}

	if err := info(ctx, dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "sketchmill-archive: %v\n", err)
		os.Exit(1)
	}
}

// info prints the sidecar summary and the archived column list.
func info(ctx context.Context, dbPath string) error {
	sidecar, err := loadSidecar(dbPath)
	if err != nil {
		return err
	}

	fmt.Printf("Archive %s\n", sidecar.ArchiveID)
	fmt.Printf("  run:     %s\n", sidecar.RunID)
	fmt.Printf("  created: %s (%s)\n",
		sidecar.CreatedAtTime().Format(time.RFC3339), humanize.Time(sidecar.CreatedAtTime()))
	fmt.Printf("  rows:    %s\n", humanize.Comma(sidecar.RowCount))
	fmt.Printf("  size:    %s\n", humanize.Bytes(uint64(sidecar.SizeBytes)))
	if sidecar.MinDatetime != "" {
		fmt.Printf("  window:  %s .. %s\n", sidecar.MinDatetime, sidecar.MaxDatetime)
	}
	fmt.Printf("  events:  %d distinct kinds\n", sidecar.DistinctEventIDs)

	columns, err := archive.Columns(ctx, dbPath)
	if err != nil {
		return err
	}
	fmt.Printf("\n  Columns (%d):\n", len(columns))
	for _, c := range columns {
		fmt.Printf("    %s\n", c)
	}
	return nil
}

// contains answers whether the archive holds the event. The sidecar filter
// rules out definite absence without opening the database.
func contains(ctx context.Context, dbPath, eventID string) int {
	sidecar, err := loadSidecar(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sketchmill-archive: %v\n", err)
		return 2
	}

	might, err := sidecar.MightContainEvent(eventID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sketchmill-archive: %v\n", err)
		return 2
	}
	if !might {
		fmt.Printf("event %s: 0 rows\n", eventID)
		return 1
	}

	count, err := archive.CountEvent(ctx, dbPath, eventID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sketchmill-archive: %v\n", err)
		return 2
	}
	if count == 0 {
		fmt.Printf("event %s: 0 rows\n", eventID)
		return 1
	}
	fmt.Printf("event %s: %s rows\n", eventID, humanize.Comma(count))
	return 0
}

// find searches every archive published under the location for the event.
// Sidecars are fetched first; only archives whose filter admits the event
// are downloaded and counted.
func find(ctx context.Context, eventID, from, cacheDir string, concurrency int, s3Region, s3Endpoint string) int {
	loc, err := storage.ParseLocation(from)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sketchmill-archive: %v\n", err)
		return 2
	}

	store, err := openStore(ctx, loc, s3Region, s3Endpoint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sketchmill-archive: %v\n", err)
		return 2
	}

	if cacheDir == "" {
		tmp, err := os.MkdirTemp("", "sketchmill-archive-*")
		if err != nil {
			fmt.Fprintf(os.Stderr, "sketchmill-archive: %v\n", err)
			return 2
		}
		defer os.RemoveAll(tmp)
		cacheDir = tmp
	}

	objects, err := store.ListObjects(ctx, loc.ObjectPath("runs"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "sketchmill-archive: %v\n", err)
		return 2
	}

	var sidecarObjects []string
	for _, object := range objects {
		if strings.HasSuffix(object, ".meta.json") {
			sidecarObjects = append(sidecarObjects, object)
		}
	}
	if len(sidecarObjects) == 0 {
		fmt.Printf("no published archives under %s\n", loc.String())
		return 1
	}

	downloader := storage.NewBatchDownloader(store, concurrency, cacheDir)

	hadErrors := false
	sidecars := downloader.Download(ctx, sidecarObjects)
	for object, ferr := range sidecars.Errors {
		fmt.Fprintf(os.Stderr, "sketchmill-archive: fetch %s: %v\n", object, ferr)
		hadErrors = true
	}

	// Screen with the filters; corrupt sidecars stay candidates.
	type candidate struct {
		sidecar *archive.Sidecar
		object  string
	}
	var candidates []candidate
	screened := 0
	for _, object := range sidecarObjects {
		localPath, ok := sidecars.LocalPaths[object]
		if !ok {
			continue
		}
		sc, rerr := archive.ReadSidecarFromFile(localPath)
		if rerr != nil {
			fmt.Fprintf(os.Stderr, "sketchmill-archive: %s: %v\n", object, rerr)
			hadErrors = true
			continue
		}
		dbObject := strings.TrimSuffix(object, ".meta.json") + ".db"
		might, merr := sc.MightContainEvent(eventID)
		if merr == nil && !might {
			screened++
			continue
		}
		candidates = append(candidates, candidate{sidecar: sc, object: dbObject})
	}

	var dbObjects []string
	for _, c := range candidates {
		dbObjects = append(dbObjects, c.object)
	}
	archives := downloader.Download(ctx, dbObjects)
	for object, ferr := range archives.Errors {
		fmt.Fprintf(os.Stderr, "sketchmill-archive: fetch %s: %v\n", object, ferr)
		hadErrors = true
	}

	found := 0
	for _, c := range candidates {
		localPath, ok := archives.LocalPaths[c.object]
		if !ok {
			continue
		}
		count, cerr := archive.CountEvent(ctx, localPath, eventID)
		if cerr != nil {
			fmt.Fprintf(os.Stderr, "sketchmill-archive: %s: %v\n", c.object, cerr)
			hadErrors = true
			continue
		}
		if count == 0 {
			continue
		}
		found++
		fmt.Printf("run %s  %s rows", c.sidecar.RunID, humanize.Comma(count))
		if c.sidecar.MinDatetime != "" {
			fmt.Printf("  %s .. %s", c.sidecar.MinDatetime, c.sidecar.MaxDatetime)
		}
		fmt.Println()
	}

	fmt.Printf("event %s: %d of %d archives, %d screened out by sidecar\n",
		eventID, found, len(sidecarObjects), screened)

	switch {
	case found > 0:
		return 0
	case hadErrors:
		return 2
	default:
		return 1
	}
}

// openStore connects to the publish location named by loc.
func openStore(ctx context.Context, loc storage.Location, region, endpoint string) (storage.ObjectStorage, error) {
	if loc.IsS3() {
		cfg := storage.DefaultS3Config()
		if region != "" {
			cfg.Region = region
		}
		if endpoint != "" {
			cfg.Endpoint = endpoint
			cfg.UsePathStyle = true
		}
		return storage.NewS3Storage(ctx, loc.Bucket, cfg)
	}
	return storage.NewLocalStorage(loc.Path)
}

func loadSidecar(dbPath string) (*archive.Sidecar, error) {
	sidecar, err := archive.ReadSidecarFromFile(archive.MetadataPath(dbPath))
	if err != nil {
		return nil, errors.NewArchiveError(errors.CodeSidecarInvalid, "read archive sidecar", err)
	}
	return sidecar, nil
}
