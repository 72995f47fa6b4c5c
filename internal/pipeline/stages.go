package pipeline

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sketchmill/sketchmill/internal/archive"
	"github.com/sketchmill/sketchmill/internal/config"
	"github.com/sketchmill/sketchmill/internal/errors"
	"github.com/sketchmill/sketchmill/internal/l2tcsv"
	"github.com/sketchmill/sketchmill/internal/manifest"
	"github.com/sketchmill/sketchmill/internal/observability"
	"github.com/sketchmill/sketchmill/internal/storage"
	"github.com/sketchmill/sketchmill/pkg/types"
)

// newPublishStorage builds the publish destination from configuration.
func newPublishStorage(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, storage.Location, error) {
	if cfg.Storage.Type == "s3" {
		dest := storage.Location{
			Scheme: "s3",
			Bucket: cfg.Storage.S3.Bucket,
			Prefix: strings.Trim(cfg.Storage.S3.Prefix, "/"),
		}
		store, err := storage.NewS3Storage(ctx, dest.Bucket, s3ConfigFrom(cfg))
		if err != nil {
			return nil, storage.Location{}, errors.NewStorageError(errors.CodeUploadFailed, "connect to publish bucket", err)
		}
		return store, dest, nil
	}

	store, err := storage.NewLocalStorage(cfg.Storage.Path)
	if err != nil {
		return nil, storage.Location{}, errors.NewStorageError(errors.CodeUploadFailed, "open local publish directory", err)
	}
	return store, storage.Location{Scheme: "local", Path: cfg.Storage.Path}, nil
}

// s3ConfigFrom maps the pipeline configuration onto the storage client
// settings. A custom endpoint switches to path-style addressing for
// S3-compatible stores.
func s3ConfigFrom(cfg *config.Config) storage.S3Config {
	s3cfg := storage.DefaultS3Config()
	if cfg.Storage.S3.Region != "" {
		s3cfg.Region = cfg.Storage.S3.Region
	}
	if cfg.Storage.S3.Endpoint != "" {
		s3cfg.Endpoint = cfg.Storage.S3.Endpoint
		s3cfg.UsePathStyle = true
	}
	return s3cfg
}

// fetchInput resolves the input location, downloading s3:// objects into the
// work directory. Local paths pass through untouched.
func (p *Pipeline) fetchInput(ctx context.Context, log *logrus.Entry, raw string) (string, error) {
	loc, err := storage.ParseLocation(raw)
	if err != nil {
		return "", errors.NewInputError(errors.CodeInputNotFound, err.Error())
	}
	if !loc.IsS3() {
		return loc.Path, nil
	}

	key := loc.Prefix
	if key == "" {
		return "", errors.NewInputError(errors.CodeInputNotFound, "input location missing object key: "+raw)
	}

	store, err := storage.NewS3Storage(ctx, loc.Bucket, s3ConfigFrom(p.cfg))
	if err != nil {
		return "", errors.NewStorageError(errors.CodeDownloadFailed, "connect to input bucket", err)
	}

	localPath := filepath.Join(p.cfg.WorkDir, "inputs", path.Base(key))
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return "", errors.NewStorageError(errors.CodeDownloadFailed, "create input directory", err)
	}

	log.WithFields(logrus.Fields{
		"bucket": loc.Bucket,
		"key":    key,
	}).Info("pipeline: fetching remote input")

	if err := store.Download(ctx, key, localPath); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", errors.NewInputError(errors.CodeInputNotFound, "input object not found: "+raw)
		}
		return "", errors.NewStorageError(errors.CodeDownloadFailed, "download input", err)
	}
	return localPath, nil
}

// readInput loads the whole timeline into memory in row order.
func (p *Pipeline) readInput(localPath string) (types.Header, []types.Record, error) {
	f, err := os.Open(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.NewInputError(errors.CodeInputNotFound, "input file not found: "+localPath)
		}
		return nil, nil, errors.NewInputError(errors.CodeInputNotFound, err.Error())
	}
	defer f.Close()

	reader, err := l2tcsv.NewReader(f)
	if err != nil {
		return nil, nil, err
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return reader.Header(), records, nil
}

// writeOutput writes the enriched rows under the finalized columns.
func (p *Pipeline) writeOutput(outputPath string, columns types.Header, records []types.Record) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return errors.NewStorageError(errors.CodeWriteFailed, "create output file", err)
	}

	w, err := l2tcsv.NewWriter(f, columns)
	if err != nil {
		f.Close()
		return err
	}
	for _, record := range records {
		if err := w.WriteRecord(record); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.NewStorageError(errors.CodeWriteFailed, "close output file", err)
	}
	return nil
}

// runUpload is one file headed for the publish destination.
type runUpload struct {
	localPath string
	multipart bool
}

// publishRun copies the run's outputs under runs/<run id>/ at the publish
// destination. The archive database goes multipart; it can be large.
func (p *Pipeline) publishRun(ctx context.Context, log *logrus.Entry, report *Report) error {
	prefix := path.Join("runs", report.RunID)

	uploads := []runUpload{
		{localPath: report.OutputPath},
	}
	if report.ArchivePath != "" {
		uploads = append(uploads,
			runUpload{localPath: report.ArchivePath, multipart: true},
			runUpload{localPath: archive.MetadataPath(report.ArchivePath)},
		)
	}

	for _, up := range uploads {
		objectPath := p.publish.ObjectPath(path.Join(prefix, filepath.Base(up.localPath)))
		log.WithFields(logrus.Fields{
			"file":   up.localPath,
			"object": objectPath,
		}).Debug("pipeline: uploading")

		var err error
		if up.multipart {
			_, err = p.store.UploadMultipart(ctx, up.localPath, objectPath)
		} else {
			err = p.store.Upload(ctx, up.localPath, objectPath)
		}
		if err != nil {
			return errors.NewStorageError(errors.CodeUploadFailed, "publish "+filepath.Base(up.localPath), err)
		}
	}

	report.PublishedTo = publishedLocation(p.publish, prefix)
	log.WithField("destination", report.PublishedTo).Info("pipeline: published run")
	return nil
}

// publishedLocation renders the destination of one run's objects.
func publishedLocation(dest storage.Location, prefix string) string {
	if dest.IsS3() {
		return dest.String() + "/" + prefix
	}
	return filepath.Join(dest.Path, filepath.FromSlash(prefix))
}

// recordRun writes the run and its per-field and per-event counts to the
// catalog.
func (p *Pipeline) recordRun(ctx context.Context, report *Report, stats *observability.RunStats) error {
	rec := &manifest.RunRecord{
		RunID:          report.RunID,
		InputPath:      report.InputPath,
		OutputPath:     report.OutputPath,
		ArchivePath:    report.ArchivePath,
		PublishedTo:    report.PublishedTo,
		StartedAt:      report.StartedAt,
		FinishedAt:     report.FinishedAt,
		InputRows:      report.InputRows,
		Fragments:      report.Fragments,
		ResolvedIDs:    report.ResolvedIDs,
		ParsedEvents:   report.ParsedEvents,
		DerivedColumns: int64(report.DerivedColumns),
		OutputColumns:  int64(report.OutputColumns),
		MinDatetime:    report.MinDatetime,
		MaxDatetime:    report.MaxDatetime,
		Fields:         fieldCounts(stats.AllFields()),
		Events:         eventCounts(stats.AllEventIDs()),
	}

	if err := p.catalog.RecordRun(ctx, rec); err != nil {
		return errors.NewCatalogError(errors.CodeRecordFailed, "record run in catalog", err)
	}
	return nil
}

func fieldCounts(stats []observability.FieldStats) []manifest.FieldCount {
	out := make([]manifest.FieldCount, len(stats))
	for i, fs := range stats {
		out[i] = manifest.FieldCount{Name: fs.Name, Rows: fs.Count}
	}
	return out
}

func eventCounts(stats []observability.FieldStats) []manifest.EventCount {
	out := make([]manifest.EventCount, len(stats))
	for i, fs := range stats {
		out[i] = manifest.EventCount{EventID: fs.Name, Rows: fs.Count}
	}
	return out
}
