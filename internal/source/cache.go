package source

import (
	"context"

	"github.com/collect-intel/dtef-app-sub001/internal/cache"
)

// Fetcher is the read surface of the configuration source.
type Fetcher interface {
	ListTree(ctx context.Context, ref string) ([]TreeEntry, error)
	GetRaw(ctx context.Context, path, ref string) ([]byte, error)
	BranchHead(ctx context.Context, branch string) (string, error)
}

// CachingFetcher wraps a Fetcher with an LRU content cache for raw file
// fetches. Cache keys include the commit ref, so entries are immutable:
// a new commit produces new keys and stale content ages out via eviction.
type CachingFetcher struct {
	inner Fetcher
	cache *cache.ContentCache
}

// NewCachingFetcher wraps inner with the given cache.
func NewCachingFetcher(inner Fetcher, contentCache *cache.ContentCache) *CachingFetcher {
	return &CachingFetcher{inner: inner, cache: contentCache}
}

// ListTree delegates to the wrapped fetcher. Tree listings are one call per
// scheduling pass and are not cached.
func (f *CachingFetcher) ListTree(ctx context.Context, ref string) ([]TreeEntry, error) {
	return f.inner.ListTree(ctx, ref)
}

// GetRaw returns cached content for path at ref, fetching on miss.
func (f *CachingFetcher) GetRaw(ctx context.Context, path, ref string) ([]byte, error) {
	key := path + "@" + ref

	if data, ok := f.cache.Get(key); ok {
		return data, nil
	}

	data, err := f.inner.GetRaw(ctx, path, ref)
	if err != nil {
		return nil, err
	}

	f.cache.Put(key, data)

	return data, nil
}

// BranchHead delegates to the wrapped fetcher. Branch heads move and must
// never be cached.
func (f *CachingFetcher) BranchHead(ctx context.Context, branch string) (string, error) {
	return f.inner.BranchHead(ctx, branch)
}

// CacheStats reports the underlying cache metrics.
func (f *CachingFetcher) CacheStats() cache.Stats {
	return f.cache.Stats()
}
