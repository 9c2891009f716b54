//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmstack/mantra/internal/domain"
	"github.com/calmstack/mantra/internal/testutil"
)

func TestCacheRepository_PutAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewCacheRepository(pool)

	cand := domain.Candidate{
		SourceID:        "archive",
		Reference:       "https://archive.org/download/calm-session",
		Title:           "Calm session",
		DurationSeconds: 612,
	}
	require.NoError(t, repo.Put(ctx, "calm|english", cand))

	got, err := repo.Get(ctx, "calm|english")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, cand, got[0])

	missing, err := repo.Get(ctx, "sleep|english")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestCacheRepository_PutDeduplicatesByReference(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewCacheRepository(pool)

	cand := domain.Candidate{SourceID: "archive", Reference: "https://example.com/a.mp3"}
	require.NoError(t, repo.Put(ctx, "calm|english", cand))
	require.NoError(t, repo.Put(ctx, "calm|english", cand))

	got, err := repo.Get(ctx, "calm|english")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCacheRepository_KeysAndClear(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewCacheRepository(pool)

	require.NoError(t, repo.Put(ctx, "calm|english", domain.Candidate{Reference: "https://example.com/a.mp3"}))
	require.NoError(t, repo.Put(ctx, "sleep|english", domain.Candidate{Reference: "https://example.com/b.mp3"}))

	keys, err := repo.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"calm|english", "sleep|english"}, keys)

	require.NoError(t, repo.Clear(ctx, "calm|english"))

	keys, err = repo.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sleep|english"}, keys)

	got, err := repo.Get(ctx, "calm|english")
	require.NoError(t, err)
	assert.Empty(t, got)
}
