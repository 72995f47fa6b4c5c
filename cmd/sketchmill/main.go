// Package main implements the sketchmill binary.
// It enriches a plaso l2tcsv timeline into a rectangular CSV with the
// embedded Windows event XML flattened into per-event columns.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/sketchmill/sketchmill/internal/config"
	"github.com/sketchmill/sketchmill/internal/errors"
	"github.com/sketchmill/sketchmill/internal/pipeline"
)

var (
	version = "dev"
	commit  = "unknown"
)

// overrides holds the command line values layered over file and environment
// configuration.
type overrides struct {
	workDir       string
	workers       int
	cacheCapacity int
	catalogPath   string
	archiveDir    string
	storageType   string
	storagePath   string
	s3Bucket      string
	s3Prefix      string
	s3Region      string
	s3Endpoint    string
	publish       bool
	verbose       bool
}

func main() {
	var (
		configFile  string
		o           overrides
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&o.workDir, "work-dir", "", "Base directory for scratch and derived files")
	flag.IntVar(&o.workers, "workers", 0, "Number of parallel row workers")
	flag.IntVar(&o.cacheCapacity, "cache-capacity", 0, "Maximum memoized fragment digests")
	flag.StringVar(&o.catalogPath, "catalog", "", "Run catalog database path (enables the catalog)")
	flag.StringVar(&o.archiveDir, "archive-dir", "", "Archive output directory (enables archiving)")
	flag.BoolVar(&o.publish, "publish", false, "Publish outputs to object storage")
	flag.StringVar(&o.storageType, "storage-type", "", "Publish storage type: local, s3")
	flag.StringVar(&o.storagePath, "storage-path", "", "Local publish directory")
	flag.StringVar(&o.s3Bucket, "s3-bucket", "", "S3 bucket for published outputs")
	flag.StringVar(&o.s3Prefix, "s3-prefix", "", "S3 key prefix for published outputs")
	flag.StringVar(&o.s3Region, "s3-region", "", "AWS region for the publish bucket")
	flag.StringVar(&o.s3Endpoint, "s3-endpoint", "", "Custom S3 endpoint (S3-compatible stores)")
	flag.BoolVar(&o.verbose, "v", false, "Enable debug logging")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Sketchmill - Timeline enrichment for Timesketch\n\n")
		fmt.Fprintf(os.Stderr, "Usage: sketchmill [options] <input> <output>\n\n")
		fmt.Fprintf(os.Stderr, "  <input>   l2tcsv timeline, a local path or s3://bucket/key\n")
		fmt.Fprintf(os.Stderr, "  <output>  enriched CSV, a local path\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  sketchmill timeline.csv enriched.csv\n")
		fmt.Fprintf(os.Stderr, "  sketchmill -workers 8 -catalog ./runs.db timeline.csv enriched.csv\n")
		fmt.Fprintf(os.Stderr, "  sketchmill -publish -storage-type s3 -s3-bucket cases s3://intake/timeline.csv enriched.csv\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  SKETCHMILL_WORK_DIR        Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  SKETCHMILL_WORKERS         Number of parallel row workers\n")
		fmt.Fprintf(os.Stderr, "  SKETCHMILL_CATALOG_PATH    Run catalog database path\n")
		fmt.Fprintf(os.Stderr, "  SKETCHMILL_ARCHIVE_DIR     Archive output directory\n")
		fmt.Fprintf(os.Stderr, "  SKETCHMILL_STORAGE_TYPE    Publish storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  SKETCHMILL_S3_BUCKET       S3 bucket for published outputs\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("sketchmill version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	input, output := flag.Arg(0), flag.Arg(1)

	cfg, err := loadConfig(configFile, o)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sketchmill: %v\n", err)
		os.Exit(2)
	}

	log := newLogger(cfg.Verbose)

	if err := cfg.EnsureDirectories(); err != nil {
		log.WithError(err).Error("sketchmill: failed to prepare directories")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(ctx, cfg, log)
	if err != nil {
		logFailure(log, err, "sketchmill: failed to initialize")
		os.Exit(1)
	}

	if _, err := p.Run(ctx, input, output); err != nil {
		logFailure(log, err, "sketchmill: run failed")
		p.Close()
		os.Exit(1)
	}

	if err := p.Close(); err != nil {
		log.WithError(err).Warn("sketchmill: close failed")
	}
}

// loadConfig layers configuration: defaults or file, then environment, then
// command line flags.
func loadConfig(configFile string, o overrides) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if o.workDir != "" {
		cfg.WorkDir = o.workDir
	}
	if o.workers > 0 {
		cfg.Workers = o.workers
	}
	if o.cacheCapacity > 0 {
		cfg.Cache.Capacity = o.cacheCapacity
	}
	if o.catalogPath != "" {
		cfg.Catalog.Path = o.catalogPath
	}
	if o.archiveDir != "" {
		cfg.Archive.Dir = o.archiveDir
	}
	if o.publish {
		cfg.Storage.Enabled = true
	}
	if o.storageType != "" {
		cfg.Storage.Type = o.storageType
	}
	if o.storagePath != "" {
		cfg.Storage.Path = o.storagePath
	}
	if o.s3Bucket != "" {
		cfg.Storage.S3.Bucket = o.s3Bucket
	}
	if o.s3Prefix != "" {
		cfg.Storage.S3.Prefix = o.s3Prefix
	}
	if o.s3Region != "" {
		cfg.Storage.S3.Region = o.s3Region
	}
	if o.s3Endpoint != "" {
		cfg.Storage.S3.Endpoint = o.s3Endpoint
	}
	if o.verbose {
		cfg.Verbose = true
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the CLI logger. Per-row progress lives at Debug.
func newLogger(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

// logFailure reports a failed stage with its error taxonomy.
func logFailure(log *logrus.Logger, err error, msg string) {
	fields := logrus.Fields{}
	if category := errors.GetCategory(err); category != "" {
		fields["category"] = category
	}
	if code := errors.GetCode(err); code != "" {
		fields["code"] = code
	}
	log.WithFields(fields).WithError(err).Error(msg)
}
