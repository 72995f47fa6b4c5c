// Package pipeline drives the enrichment of one l2tcsv timeline: a read
// pass that extracts, resolves, and flattens embedded event XML per row,
// then a write pass projecting every row onto the finalized schema. Optional
// stages archive, publish, and catalog the result.
package pipeline

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sketchmill/sketchmill/internal/archive"
	"github.com/sketchmill/sketchmill/internal/cache"
	"github.com/sketchmill/sketchmill/internal/config"
	"github.com/sketchmill/sketchmill/internal/errors"
	"github.com/sketchmill/sketchmill/internal/manifest"
	"github.com/sketchmill/sketchmill/internal/observability"
	"github.com/sketchmill/sketchmill/internal/schema"
	"github.com/sketchmill/sketchmill/internal/storage"
)

// progressInterval is how often the read pass logs row progress.
const progressInterval = 1000

// sampleFieldCount is how many derived field names the summary shows.
const sampleFieldCount = 10

// Pipeline enriches l2tcsv timelines. One pipeline serves many runs; the
// fragment cache persists across them.
type Pipeline struct {
	cfg      *config.Config
	log      *logrus.Logger
	cache    *cache.FragmentCache
	catalog  manifest.Catalog
	archiver *archive.Builder
	store    storage.ObjectStorage
	publish  storage.Location
}

// New wires a pipeline from configuration. The catalog, archive, and publish
// stages attach only when the configuration enables them.
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*Pipeline, error) {
	if log == nil {
		log = logrus.New()
	}

	p := &Pipeline{
		cfg:   cfg,
		log:   log,
		cache: cache.NewFragmentCache(cfg.Cache.Capacity),
	}

	if cfg.CatalogEnabled() {
		cat, err := manifest.NewCatalog(cfg.Catalog.Path)
		if err != nil {
			return nil, errors.NewCatalogError(errors.CodeCatalogOpenFailed, "open run catalog", err)
		}
		p.catalog = cat
	}

	if cfg.ArchiveEnabled() {
		p.archiver = archive.NewBuilder(cfg.Archive.Dir)
	}

	if cfg.PublishEnabled() {
		store, dest, err := newPublishStorage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		p.store = store
		p.publish = dest
	}

	return p, nil
}

// Close releases the catalog connection.
func (p *Pipeline) Close() error {
	if p.catalog != nil {
		return p.catalog.Close()
	}
	return nil
}

// Run enriches one timeline. Input may be a local path or an s3:// location;
// output must be local. Per-row parse failures degrade silently; any file,
// schema, or subsystem failure aborts the run.
func (p *Pipeline) Run(ctx context.Context, input, output string) (*Report, error) {
	runID := uuid.New().String()
	startedAt := time.Now()
	log := p.log.WithField("run_id", runID)

	log.WithFields(logrus.Fields{
		"input":   input,
		"output":  output,
		"workers": p.cfg.Workers,
	}).Info("pipeline: starting run")

	outLoc, err := storage.ParseLocation(output)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeWriteFailed, "resolve output location", err)
	}
	if outLoc.IsS3() {
		return nil, errors.NewStorageError(errors.CodeWriteFailed, "output must be a local path, use the publish destination for remote copies", nil)
	}

	localInput, err := p.fetchInput(ctx, log, input)
	if err != nil {
		return nil, err
	}

	header, records, err := p.readInput(localInput)
	if err != nil {
		return nil, err
	}
	log.WithField("rows", len(records)).Debug("pipeline: input loaded")

	hits0, misses0 := p.cache.Stats()

	outcomes, err := p.enrichAll(ctx, records)
	if err != nil {
		return nil, err
	}

	acc := schema.NewAccumulator()
	stats := observability.NewRunStats()
	enriched, err := p.foldOutcomes(log, header, records, outcomes, acc, stats)
	if err != nil {
		return nil, err
	}

	if err := acc.Finalize(); err != nil {
		return nil, err
	}
	derived, err := acc.Columns()
	if err != nil {
		return nil, err
	}
	columns := schema.OutputColumns(header, derived)

	if err := p.writeOutput(outLoc.Path, columns, enriched); err != nil {
		return nil, err
	}

	rows, fragments, resolved, parsed := stats.Totals()
	minRaw, maxRaw := stats.DatetimeBounds()
	hits, misses := p.cache.Stats()

	report := &Report{
		RunID:          runID,
		InputPath:      input,
		OutputPath:     outLoc.Path,
		InputRows:      rows,
		Fragments:      fragments,
		ResolvedIDs:    resolved,
		ParsedEvents:   parsed,
		DerivedColumns: len(derived),
		OutputColumns:  len(columns),
		MinDatetime:    minRaw,
		MaxDatetime:    maxRaw,
		SampleFields:   acc.Sample(sampleFieldCount),
		TopEventIDs:    stats.GetTopEventIDs(5),
		CacheHits:      hits - hits0,
		CacheMisses:    misses - misses0,
		StartedAt:      startedAt,
	}

	if p.archiver != nil {
		if len(enriched) == 0 {
			log.Warn("pipeline: skipping archive, input had no rows")
		} else {
			info, err := p.archiver.Build(ctx, runID, columns, enriched)
			if err != nil {
				return nil, errors.NewArchiveError(errors.CodeBuildFailed, "build run archive", err)
			}
			report.ArchivePath = info.SQLitePath
			log.WithFields(logrus.Fields{
				"path": info.SQLitePath,
				"size": humanize.Bytes(uint64(info.SizeBytes)),
			}).Info("pipeline: archived run")
		}
	}

	if p.store != nil {
		if err := p.publishRun(ctx, log, report); err != nil {
			return nil, err
		}
	}

	report.FinishedAt = time.Now()

	if p.catalog != nil {
		if err := p.recordRun(ctx, report, stats); err != nil {
			return nil, err
		}
		log.WithField("catalog", p.cfg.Catalog.Path).Debug("pipeline: run recorded")
	}

	p.logSummary(log, report)
	return report, nil
}

// logSummary reports the run at Info, with parse detail at Debug.
func (p *Pipeline) logSummary(log *logrus.Entry, report *Report) {
	log.WithFields(logrus.Fields{
		"rows":            humanize.Comma(report.InputRows),
		"fragments":       humanize.Comma(report.Fragments),
		"resolved_ids":    humanize.Comma(report.ResolvedIDs),
		"parsed_events":   humanize.Comma(report.ParsedEvents),
		"derived_columns": report.DerivedColumns,
		"output_columns":  report.OutputColumns,
		"duration":        report.Duration().Round(time.Millisecond).String(),
	}).Info("pipeline: run complete")

	if len(report.SampleFields) > 0 {
		log.WithField("fields", report.SampleFields).Debug("pipeline: derived field sample")
	}
	for _, ev := range report.TopEventIDs {
		log.WithFields(logrus.Fields{
			"event_id": ev.Name,
			"rows":     ev.Count,
		}).Debug("pipeline: top event kind")
	}
	log.WithFields(logrus.Fields{
		"hits":   report.CacheHits,
		"misses": report.CacheMisses,
	}).Debug("pipeline: fragment cache")
}
