package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmstack/mantra/internal/domain"
)

func TestFileCachePutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")

	c := NewFileCache(path)
	require.NoError(t, c.Put(ctx, "calm|english", domain.Candidate{SourceID: "curated", Reference: "https://example.com/a.mp3"}))
	require.NoError(t, c.Put(ctx, "calm|english", domain.Candidate{SourceID: "archive", Reference: "https://example.com/b.mp3"}))

	// A fresh instance reads back what the first one persisted.
	reloaded := NewFileCache(path)
	got, err := reloaded.Get(ctx, "calm|english")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://example.com/a.mp3", got[0].Reference)
	assert.Equal(t, "https://example.com/b.mp3", got[1].Reference)
}

func TestFileCacheDeduplicatesByReference(t *testing.T) {
	ctx := context.Background()
	c := NewFileCache(filepath.Join(t.TempDir(), "cache.json"))

	cand := domain.Candidate{Reference: "https://example.com/a.mp3"}
	require.NoError(t, c.Put(ctx, "calm|english", cand))
	require.NoError(t, c.Put(ctx, "calm|english", cand))

	got, err := c.Get(ctx, "calm|english")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFileCacheMissingKeyIsEmpty(t *testing.T) {
	c := NewFileCache(filepath.Join(t.TempDir(), "cache.json"))

	got, err := c.Get(context.Background(), "unknown|english")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileCacheCorruptFileStartsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c := NewFileCache(path)
	got, err := c.Get(ctx, "calm|english")
	require.NoError(t, err)
	assert.Empty(t, got)

	// And the cache is writable again afterwards.
	require.NoError(t, c.Put(ctx, "calm|english", domain.Candidate{Reference: "https://example.com/a.mp3"}))
	got, err = c.Get(ctx, "calm|english")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c := NewFileCache(filepath.Join(t.TempDir(), "cache.json"))

	require.NoError(t, c.Put(ctx, "calm|english", domain.Candidate{Reference: "a"}))
	require.NoError(t, c.Put(ctx, "focused|english", domain.Candidate{Reference: "b"}))

	keys, err := c.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"calm|english", "focused|english"}, keys)

	require.NoError(t, c.Clear(ctx, "calm|english"))
	got, err := c.Get(ctx, "calm|english")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = c.Get(ctx, "focused|english")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
