package source_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collect-intel/dtef-app-sub001/internal/cache"
	"github.com/collect-intel/dtef-app-sub001/internal/source"
)

type countingFetcher struct {
	rawCalls  int
	treeCalls int
	headCalls int
	rawErr    error
}

func (f *countingFetcher) ListTree(_ context.Context, _ string) ([]source.TreeEntry, error) {
	f.treeCalls++

	return []source.TreeEntry{{Path: "blueprints/gss.yml", Type: "blob"}}, nil
}

func (f *countingFetcher) GetRaw(_ context.Context, path, ref string) ([]byte, error) {
	f.rawCalls++

	if f.rawErr != nil {
		return nil, f.rawErr
	}

	return []byte(path + "@" + ref), nil
}

func (f *countingFetcher) BranchHead(_ context.Context, _ string) (string, error) {
	f.headCalls++

	return "sha-1", nil
}

func TestCachingFetcher_GetRawCachedPerRef(t *testing.T) {
	t.Parallel()

	inner := &countingFetcher{}
	f := source.NewCachingFetcher(inner, cache.New(1024))

	first, err := f.GetRaw(t.Context(), "blueprints/gss.yml", "sha-1")
	require.NoError(t, err)

	second, err := f.GetRaw(t.Context(), "blueprints/gss.yml", "sha-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.rawCalls, "second fetch should hit the cache")

	// A new commit produces a new key and refetches.
	_, err = f.GetRaw(t.Context(), "blueprints/gss.yml", "sha-2")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.rawCalls)
}

var errFetchFailed = errors.New("fetch failed")

func TestCachingFetcher_ErrorsNotCached(t *testing.T) {
	t.Parallel()

	inner := &countingFetcher{rawErr: errFetchFailed}
	f := source.NewCachingFetcher(inner, cache.New(1024))

	_, err := f.GetRaw(t.Context(), "blueprints/gss.yml", "sha-1")
	require.ErrorIs(t, err, errFetchFailed)

	inner.rawErr = nil

	_, err = f.GetRaw(t.Context(), "blueprints/gss.yml", "sha-1")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.rawCalls)
}

func TestCachingFetcher_PassThroughOperations(t *testing.T) {
	t.Parallel()

	inner := &countingFetcher{}
	f := source.NewCachingFetcher(inner, cache.New(1024))

	_, err := f.ListTree(t.Context(), "sha-1")
	require.NoError(t, err)

	head, err := f.BranchHead(t.Context(), "main")
	require.NoError(t, err)
	assert.Equal(t, "sha-1", head)

	_, _ = f.BranchHead(t.Context(), "main")
	assert.Equal(t, 2, inner.headCalls, "branch heads are never cached")
}

func TestCachingFetcher_CacheStats(t *testing.T) {
	t.Parallel()

	inner := &countingFetcher{}
	f := source.NewCachingFetcher(inner, cache.New(1024))

	_, err := f.GetRaw(t.Context(), "models/model_collections.yml", "sha-1")
	require.NoError(t, err)

	_, err = f.GetRaw(t.Context(), "models/model_collections.yml", "sha-1")
	require.NoError(t, err)

	stats := f.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}
