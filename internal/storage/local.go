package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStorage implements ObjectStorage on the local filesystem.
// It backs the default publish target and keeps tests hermetic.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a local filesystem storage rooted at basePath.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &LocalStorage{basePath: basePath}, nil
}

// Upload copies a local file to objectPath. The object appears only once
// it is complete; readers of the publish directory never see partial files.
func (l *LocalStorage) Upload(ctx context.Context, localPath, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	destPath := l.fullPath(objectPath)
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer src.Close()

	partial, err := os.CreateTemp(filepath.Dir(destPath), filepath.Base(destPath)+".partial-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	if _, err := io.Copy(partial, src); err != nil {
		partial.Close()
		os.Remove(partial.Name())
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := partial.Close(); err != nil {
		os.Remove(partial.Name())
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	if err := os.Rename(partial.Name(), destPath); err != nil {
		os.Remove(partial.Name())
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	return nil
}

// UploadMultipart uploads a file and returns its ETag. Local uploads are
// a single copy; the ETag is the md5 of the content, matching what S3
// returns for simple puts.
func (l *LocalStorage) UploadMultipart(ctx context.Context, localPath, objectPath string) (string, error) {
	if err := l.Upload(ctx, localPath, objectPath); err != nil {
		return "", err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer src.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, src); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Download copies an object to localPath, creating parent directories.
// The file appears there only once it is complete; a failed copy never
// leaves a partial file for cache checks to mistake for the object.
func (l *LocalStorage) Download(ctx context.Context, objectPath, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	srcPath := l.fullPath(objectPath)
	if _, err := os.Stat(srcPath); os.IsNotExist(err) {
		return ErrObjectNotFound
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer src.Close()

	partial, err := os.CreateTemp(filepath.Dir(localPath), filepath.Base(localPath)+".partial-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	if _, err := io.Copy(partial, src); err != nil {
		partial.Close()
		os.Remove(partial.Name())
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if err := partial.Close(); err != nil {
		os.Remove(partial.Name())
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	if err := os.Rename(partial.Name(), localPath); err != nil {
		os.Remove(partial.Name())
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	return nil
}

// Delete removes an object. Deleting a missing object succeeds, matching
// S3 semantics.
func (l *LocalStorage) Delete(ctx context.Context, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(l.fullPath(objectPath)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}

	return nil
}

// Exists reports whether an object is present.
func (l *LocalStorage) Exists(ctx context.Context, objectPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(l.fullPath(objectPath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListObjects returns all object paths under the given prefix, sorted.
// A prefix that does not exist yields an empty list.
func (l *LocalStorage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	searchDir := l.fullPath(prefix)
	var objects []string

	err := filepath.Walk(searchDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			rel, err := filepath.Rel(l.basePath, p)
			if err != nil {
				return err
			}
			objects = append(objects, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(objects)
	return objects, nil
}

// fullPath maps an object path into the base directory. Cleaning with a
// leading slash keeps "../" segments from escaping it.
func (l *LocalStorage) fullPath(objectPath string) string {
	clean := strings.TrimPrefix(path.Clean("/"+objectPath), "/")
	return filepath.Join(l.basePath, filepath.FromSlash(clean))
}
