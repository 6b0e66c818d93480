package services

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/vela-games/lfsserver/cache"
	"github.com/vela-games/lfsserver/exporter"
	"github.com/vela-games/lfsserver/lfs"
)

// CachedStorage remembers which objects exist. Objects are addressed by
// content, so only positive answers are cached.
type CachedStorage struct {
	lfs.LargeFileStorage
	cache         cache.Cache
	promCollector *exporter.LFSCollector
}

func NewCachedStorage(storage lfs.LargeFileStorage, cache cache.Cache, promCollector *exporter.LFSCollector) *CachedStorage {
	return &CachedStorage{
		LargeFileStorage: storage,
		cache:            cache,
		promCollector:    promCollector,
	}
}

func (c *CachedStorage) Exists(ctx context.Context, oid string) (bool, error) {
	_, err := c.cache.Get(oid)
	if err == nil {
		c.promCollector.CacheHits.Add(1)
		return true, nil
	} else if errors.Is(err, cache.ErrEntryNotFound) {
		c.promCollector.CacheMiss.Add(1)
	}

	exists, err := c.LargeFileStorage.Exists(ctx, oid)
	if err != nil || !exists {
		return exists, err
	}

	if err := c.cache.Set(oid, []byte{1}); err != nil {
		log.FromContext(ctx).Warn("error caching object existence", "oid", oid, "err", err)
	}

	return true, nil
}

// Unwrap returns the decorated storage.
func (c *CachedStorage) Unwrap() lfs.LargeFileStorage {
	return c.LargeFileStorage
}
