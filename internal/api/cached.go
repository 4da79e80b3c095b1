package api

import (
	"context"
	"fmt"
	"time"

	"casaspese/internal/cache"
	"casaspese/internal/core"
)

// CachedDirectory keeps the result of a Directory for a while so repeated
// form opens do not refetch it.
type CachedDirectory struct {
	name  string
	inner Directory
	cache *cache.LRUCache[[]core.DirectoryEntry]
}

// NewCachedDirectory wraps inner. name is used as the cache key and in errors.
func NewCachedDirectory(name string, inner Directory, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{
		name:  name,
		inner: inner,
		cache: cache.NewLRUCache[[]core.DirectoryEntry](1, ttl),
	}
}

func (d *CachedDirectory) List(ctx context.Context) ([]core.DirectoryEntry, error) {
	entries, err := d.cache.GetOrLoad(ctx, d.name, d.inner.List)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.name, err)
	}
	return append([]core.DirectoryEntry(nil), entries...), nil
}

// Invalidate drops the cached entries.
func (d *CachedDirectory) Invalidate() {
	d.cache.Delete(d.name)
}

// Cleaner exposes the underlying cache for a cache.Manager.
func (d *CachedDirectory) Cleaner() cache.Cleaner {
	return d.cache
}
