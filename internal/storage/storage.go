package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	cfg "github.com/templui/campus/internal/config"
)

// Storage defines the interface for object storage operations
type Storage interface {
	// Save stores an object at the given path
	Save(ctx context.Context, path string, body io.Reader) error

	// Delete removes the object at the given path
	Delete(ctx context.Context, path string) error

	// URL returns the stable public reference stored alongside the object
	URL(path string) string

	// DownloadURL returns a URL the object can be fetched from right now
	DownloadURL(ctx context.Context, path string) (string, error)
}

// New creates the object store selected by STORAGE_DRIVER
func New(c *cfg.Config) (Storage, error) {
	switch c.StorageDriver {
	case cfg.StorageDriverS3:
		slog.Info("initializing S3 storage",
			"bucket", c.S3Bucket,
			"region", c.S3Region,
			"endpoint", c.S3Endpoint,
		)
		return NewS3Storage(S3Config{
			Region:        c.S3Region,
			Bucket:        c.S3Bucket,
			AccessKey:     c.S3AccessKey,
			SecretKey:     c.S3SecretKey,
			Endpoint:      c.S3Endpoint,
			PresignExpiry: c.S3PresignExpiry,
		})
	case cfg.StorageDriverLocal:
		slog.Info("initializing local storage", "path", c.LocalStoragePath, "url", c.LocalStorageURL)
		return NewLocalStorage(c.LocalStoragePath, c.LocalStorageURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
}
