// Package storage provides object storage abstractions for publishing run outputs.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts object storage operations.
// Implementations include S3 and local filesystem for testing.
type ObjectStorage interface {
	// Upload uploads a file to object storage.
	// localPath is the path to the local file to upload.
	// objectPath is the destination path in object storage.
	Upload(ctx context.Context, localPath, objectPath string) error

	// UploadMultipart uploads using multipart for large files.
	// Returns the ETag of the uploaded object for validation.
	// localPath is the path to the local file to upload.
	// objectPath is the destination path in object storage.
	UploadMultipart(ctx context.Context, localPath, objectPath string) (string, error)

	// Download downloads a file from object storage.
	// objectPath is the source path in object storage.
	// localPath is the destination path on the local filesystem.
	Download(ctx context.Context, objectPath, localPath string) error

	// Delete removes an object from storage.
	// objectPath is the path of the object to delete.
	Delete(ctx context.Context, objectPath string) error

	// Exists checks if an object exists in storage.
	// Returns true if the object exists, false otherwise.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all object paths under the given prefix.
	// Used to discover published runs and archive sidecars.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// MultipartUploadConfig holds configuration for multipart uploads.
type MultipartUploadConfig struct {
	// PartSize is the size of each part in bytes (default: 5MB).
	PartSize int64
	// Concurrency is the number of concurrent part uploads (default: 5).
	Concurrency int
}

// DefaultMultipartConfig returns the default multipart upload configuration.
func DefaultMultipartConfig() MultipartUploadConfig {
	return MultipartUploadConfig{
		PartSize:    5 * 1024 * 1024, // 5MB
		Concurrency: 5,
	}
}

// Location identifies a storage destination parsed from a location string.
// An "s3://bucket/prefix" string selects S3; anything else is a local directory.
type Location struct {
	// Scheme is "local" or "s3".
	Scheme string
	// Bucket is the S3 bucket name (s3 scheme only).
	Bucket string
	// Prefix is the object key prefix (s3 scheme only).
	Prefix string
	// Path is the base directory (local scheme only).
	Path string
}

const s3Scheme = "s3://"

// ParseLocation parses a storage location string.
func ParseLocation(raw string) (Location, error) {
	if raw == "" {
		return Location{}, errors.New("storage location is empty")
	}

	if strings.HasPrefix(raw, s3Scheme) {
		rest := strings.TrimPrefix(raw, s3Scheme)
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return Location{}, errors.New("storage location missing s3 bucket")
		}
		return Location{
			Scheme: "s3",
			Bucket: bucket,
			Prefix: strings.Trim(prefix, "/"),
		}, nil
	}

	return Location{Scheme: "local", Path: raw}, nil
}

// IsS3 reports whether the location selects S3 storage.
func (l Location) IsS3() bool {
	return l.Scheme == "s3"
}

// String returns the canonical location string.
func (l Location) String() string {
	if l.IsS3() {
		if l.Prefix != "" {
			return s3Scheme + l.Bucket + "/" + l.Prefix
		}
		return s3Scheme + l.Bucket
	}
	return l.Path
}

// ObjectPath returns the object path for a named output at this location.
// Local storage is rooted at the base directory, so the name is used as-is.
func (l Location) ObjectPath(name string) string {
	if l.IsS3() && l.Prefix != "" {
		return path.Join(l.Prefix, name)
	}
	return name
}
