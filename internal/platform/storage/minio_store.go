// Package storage implements the archive.ObjectStore interface against
// any S3-compatible object store via the MinIO client.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/husaynirfan1/lukisan-api/internal/config"
)

// Common errors.
var (
	ErrNilLogger   = errors.New("logger cannot be nil")
	ErrEmptyBucket = errors.New("storage bucket cannot be empty")
)

// MinioStore stores artifacts in a single bucket of an S3-compatible
// object store.
type MinioStore struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
	logger        *slog.Logger
}

// NewMinioStore creates a new MinioStore from the storage configuration.
func NewMinioStore(cfg config.StorageConfig, logger *slog.Logger) (*MinioStore, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	if cfg.Bucket == "" {
		return nil, ErrEmptyBucket
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	return &MinioStore{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:        logger.With("component", "minio_store"),
	}, nil
}

// Upload writes the object under key, replacing any existing object
// with the same key, and returns the number of bytes stored.
func (s *MinioStore) Upload(
	ctx context.Context,
	key string,
	body io.Reader,
	size int64,
	contentType string,
) (int64, error) {
	info, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		s.logger.Error("object upload failed",
			"bucket", s.bucket,
			"key", key,
			"error", err)
		return 0, fmt.Errorf("failed to upload object %q: %w", key, err)
	}

	s.logger.Debug("object uploaded",
		"bucket", s.bucket,
		"key", key,
		"size_bytes", info.Size)

	return info.Size, nil
}

// PublicURL returns the permanent public locator for the object stored
// under key.
func (s *MinioStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucket, key)
}
