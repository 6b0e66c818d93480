package cache

import (
	"context"
	"time"

	"github.com/allegro/bigcache/v3"
)

// Cache holds the oids already known to be stored.
type Cache interface {
	Get(key string) ([]byte, error)
	Set(key string, entry []byte) error
	Delete(key string) error
}

// ErrEntryNotFound is returned by Get for a key that is not cached.
var ErrEntryNotFound = bigcache.ErrEntryNotFound

func NewCache(ctx context.Context, cacheEviction time.Duration, maxSizeMB int) (Cache, error) {
	cfg := bigcache.DefaultConfig(cacheEviction)
	cfg.HardMaxCacheSize = maxSizeMB
	cfg.Verbose = false

	cache, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return cache, nil
}
