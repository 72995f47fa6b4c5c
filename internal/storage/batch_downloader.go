package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

// BatchDownloader coordinates parallel downloads from object storage.
// Cross-run archive search uses it to pull sidecars ahead of the archive
// databases they describe, reusing files already fetched into cacheDir.
type BatchDownloader struct {
	storage     ObjectStorage
	concurrency int
	cacheDir    string
}

// NewBatchDownloader creates a batch downloader.
// Downloads land under cacheDir, mirroring their object paths; objects
// already present there are not fetched again. An empty cacheDir writes
// into the working directory and always refetches.
func NewBatchDownloader(storage ObjectStorage, concurrency int, cacheDir string) *BatchDownloader {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchDownloader{
		storage:     storage,
		concurrency: concurrency,
		cacheDir:    cacheDir,
	}
}

// BatchResult contains the outcome of one batch.
type BatchResult struct {
	// LocalPaths maps each fetched object path to its file on disk.
	LocalPaths map[string]string
	// Errors maps failed object paths to their download errors.
	Errors map[string]error
	// CacheHits counts objects reused from cacheDir.
	CacheHits int
	// Downloads counts objects actually transferred.
	Downloads int
}

// Failed returns true if any object in the batch could not be fetched.
func (r *BatchResult) Failed() bool {
	return len(r.Errors) > 0
}

// Download fetches the given objects, at most concurrency at a time.
// Per-object failures are collected in the result rather than aborting
// the batch; only context cancellation stops it early.
func (b *BatchDownloader) Download(ctx context.Context, objectPaths []string) *BatchResult {
	result := &BatchResult{
		LocalPaths: make(map[string]string),
		Errors:     make(map[string]error),
	}
	if len(objectPaths) == 0 {
		return result
	}

	type fetch struct {
		object string
		local  string
	}
	var queue []fetch

	for _, object := range objectPaths {
		local := b.localPath(object)
		if b.cacheDir != "" {
			if _, err := os.Stat(local); err == nil {
				result.LocalPaths[object] = local
				result.CacheHits++
				continue
			}
		}
		queue = append(queue, fetch{object: object, local: local})
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = semaphore.NewWeighted(int64(b.concurrency))
	)

	for _, f := range queue {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result.Errors[f.object] = fmt.Errorf("download cancelled: %w", err)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(f fetch) {
			defer sem.Release(1)
			defer wg.Done()

			if err := b.storage.Download(ctx, f.object, f.local); err != nil {
				mu.Lock()
				result.Errors[f.object] = err
				mu.Unlock()
				return
			}

			mu.Lock()
			result.LocalPaths[f.object] = f.local
			result.Downloads++
			mu.Unlock()
		}(f)
	}

	wg.Wait()

	return result
}

// localPath mirrors an object path under the cache directory. Cleaning
// with a leading slash keeps "../" segments from escaping it.
func (b *BatchDownloader) localPath(objectPath string) string {
	clean := strings.TrimPrefix(path.Clean("/"+objectPath), "/")
	return filepath.Join(b.cacheDir, filepath.FromSlash(clean))
}
