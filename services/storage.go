package services

import (
	"context"
	"fmt"
	"io"

	"github.com/vela-games/lfsserver/cache"
	"github.com/vela-games/lfsserver/config"
	"github.com/vela-games/lfsserver/exporter"
	"github.com/vela-games/lfsserver/lfs"
)

// ObjectTransfer is implemented by backends whose objects are streamed
// through this server rather than fetched from storage directly.
type ObjectTransfer interface {
	Download(ctx context.Context, oid string) (io.ReadCloser, int64, error)
	Upload(ctx context.Context, oid string, body io.Reader) error
}

// NewStorage opens the backend selected by cfg, wrapped in an existence
// cache when enabled.
func NewStorage(ctx context.Context, cfg *config.Config) (lfs.LargeFileStorage, error) {
	var (
		storage lfs.LargeFileStorage
		err     error
	)

	switch cfg.StorageBackend {
	case config.BackendS3:
		storage, err = NewS3Storage(cfg.S3Bucket, cfg.S3UseAccelerate, cfg.S3PresignEnabled, cfg.S3PresignExpiration)
	case config.BackendAzure:
		storage, err = OpenAzureStorage(ctx, cfg.AzureContainer, cfg.ActionExpiration)
	case config.BackendGCS:
		storage, err = OpenGCSStorage(ctx, cfg.GCSBucket, cfg.ActionExpiration)
	case config.BackendLocal:
		storage, err = OpenLocalStorage(cfg.LocalRepo, cfg.LocalEndpoint)
	default:
		err = fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	if err != nil {
		return nil, err
	}

	if !cfg.CacheEnabled {
		return storage, nil
	}

	existsCache, err := cache.NewCache(ctx, cfg.CacheEviction, cfg.CacheMaxSizeMB)
	if err != nil {
		return nil, err
	}

	return NewCachedStorage(storage, existsCache, exporter.NewCollector()), nil
}

// Transfer returns the ObjectTransfer behind storage, if any.
func Transfer(storage lfs.LargeFileStorage) (ObjectTransfer, bool) {
	for {
		if t, ok := storage.(ObjectTransfer); ok {
			return t, true
		}

		u, ok := storage.(interface{ Unwrap() lfs.LargeFileStorage })
		if !ok {
			return nil, false
		}

		storage = u.Unwrap()
	}
}

// Close releases the backend behind storage.
func Close(storage lfs.LargeFileStorage) error {
	for {
		if c, ok := storage.(io.Closer); ok {
			return c.Close()
		}

		u, ok := storage.(interface{ Unwrap() lfs.LargeFileStorage })
		if !ok {
			return nil
		}

		storage = u.Unwrap()
	}
}
