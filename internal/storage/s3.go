package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Storage implements ObjectStorage for AWS S3 and S3-compatible stores.
// Runs are published here; remote timelines and archives are fetched from here.
type S3Storage struct {
	client     *s3.Client
	bucket     string
	config     S3Config
	maxRetries int
}

// S3Config holds the client settings for one bucket.
type S3Config struct {
	// Region is the AWS region for the bucket.
	Region string
	// Endpoint is an optional custom endpoint (MinIO, LocalStack).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
	// MultipartConfig holds multipart upload settings.
	MultipartConfig MultipartUploadConfig
}

// DefaultS3Config returns the default S3 configuration.
func DefaultS3Config() S3Config {
	return S3Config{
		Region:          "us-east-1",
		MultipartConfig: DefaultMultipartConfig(),
	}
}

// NewS3Storage creates an S3 storage client for the given bucket.
// Credentials come from the default AWS chain.
func NewS3Storage(ctx context.Context, bucket string, cfg S3Config) (*S3Storage, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Storage{
		client:     s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:     bucket,
		config:     cfg,
		maxRetries: 3,
	}, nil
}

// contentTypeFor maps a published object to its media type so downstream
// consumers (Timesketch importers, browsers) see the right one.
func contentTypeFor(objectPath string) string {
	switch strings.ToLower(filepath.Ext(objectPath)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Upload puts a local file at objectPath in one request.
func (s *S3Storage) Upload(ctx context.Context, localPath, objectPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer file.Close()

	return s.withRetry(ctx, func() error {
		// Rewind so a retried attempt sends the whole file
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}

		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(objectPath),
			Body:        file,
			ContentType: aws.String(contentTypeFor(objectPath)),
		})
		return err
	})
}

// UploadMultipart uploads a file in parts and returns the resulting ETag.
// Files at or below one part size go up in a single request instead.
func (s *S3Storage) UploadMultipart(ctx context.Context, localPath, objectPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	fileSize := stat.Size()
	if fileSize <= s.config.MultipartConfig.PartSize {
		if err := s.Upload(ctx, localPath, objectPath); err != nil {
			return "", err
		}
		return s.headETag(ctx, objectPath)
	}

	var etag string
	err = s.withRetry(ctx, func() error {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}

		var uploadErr error
		etag, uploadErr = s.uploadParts(ctx, file, fileSize, objectPath)
		return uploadErr
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	return etag, nil
}

func (s *S3Storage) uploadParts(ctx context.Context, file *os.File, fileSize int64, objectPath string) (string, error) {
	partSize := s.config.MultipartConfig.PartSize

	createResp, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectPath),
		ContentType: aws.String(contentTypeFor(objectPath)),
	})
	if err != nil {
		return "", err
	}

	uploadID := createResp.UploadId
	numParts := int(math.Ceil(float64(fileSize) / float64(partSize)))
	completedParts := make([]types.CompletedPart, 0, numParts)

	for partNum := 1; partNum <= numParts; partNum++ {
		offset := int64(partNum-1) * partSize
		size := partSize
		if offset+size > fileSize {
			size = fileSize - offset
		}

		uploadResp, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(objectPath),
			UploadId:      uploadID,
			PartNumber:    aws.Int32(int32(partNum)),
			Body:          io.NewSectionReader(file, offset, size),
			ContentLength: aws.Int64(size),
		})
		if err != nil {
			s.abortUpload(ctx, objectPath, uploadID)
			return "", err
		}

		completedParts = append(completedParts, types.CompletedPart{
			ETag:       uploadResp.ETag,
			PartNumber: aws.Int32(int32(partNum)),
		})
	}

	completeResp, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(objectPath),
		UploadId: uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completedParts,
		},
	})
	if err != nil {
		s.abortUpload(ctx, objectPath, uploadID)
		return "", err
	}

	return aws.ToString(completeResp.ETag), nil
}

func (s *S3Storage) abortUpload(ctx context.Context, objectPath string, uploadID *string) {
	_, _ = s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(objectPath),
		UploadId: uploadID,
	})
}

// Download fetches an object into localPath. The file appears there only
// once it is complete; partial transfers never replace an earlier copy.
func (s *S3Storage) Download(ctx context.Context, objectPath, localPath string) error {
	var resp *s3.GetObjectOutput
	err := s.withRetry(ctx, func() error {
		var getErr error
		resp, getErr = s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectPath),
		})
		if getErr != nil {
			var noSuchKey *types.NoSuchKey
			if errors.As(getErr, &noSuchKey) {
				return ErrObjectNotFound
			}
		}
		return getErr
	})
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	partial, err := os.CreateTemp(filepath.Dir(localPath), filepath.Base(localPath)+".partial-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	if _, err := io.Copy(partial, resp.Body); err != nil {
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

// Delete removes an object.
func (s *S3Storage) Delete(ctx context.Context, objectPath string) error {
	err := s.withRetry(ctx, func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectPath),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// Exists reports whether an object is present.
func (s *S3Storage) Exists(ctx context.Context, objectPath string) (bool, error) {
	var exists bool
	err := s.withRetry(ctx, func() error {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectPath),
		})
		if err != nil {
			var notFound *types.NotFound
			var noSuchKey *types.NoSuchKey
			if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
				exists = false
				return nil
			}
			return err
		}
		exists = true
		return nil
	})

	return exists, err
}

// ListObjects returns all object paths under the given prefix.
func (s *S3Storage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	var objects []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, aws.ToString(obj.Key))
		}
	}

	return objects, nil
}

// headETag retrieves the ETag of an uploaded object.
func (s *S3Storage) headETag(ctx context.Context, objectPath string) (string, error) {
	resp, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(resp.ETag), nil
}

// withRetry runs the operation with exponential backoff. Missing objects
// never resolve with more attempts and fail immediately.
func (s *S3Storage) withRetry(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrObjectNotFound) {
			return lastErr
		}

		if attempt < s.maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
