//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmstack/mantra/internal/domain"
	"github.com/calmstack/mantra/internal/testutil"
)

func TestFeedbackRepository_AppendAndSummarize(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFeedbackRepository(pool)

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
	entries := []domain.FeedbackEntry{
		{UserID: "u1", Reference: "https://example.com/a.mp3", Mood: "calm", SourceID: "curated", Rating: 5, Timestamp: base},
		{UserID: "u1", Reference: "https://example.com/a.mp3", Mood: "calm", SourceID: "curated", Rating: 4, Timestamp: base.Add(time.Minute)},
		{UserID: "u2", Reference: "https://example.com/b.mp3", Mood: "focus", SourceID: "archive", Rating: 2, Timestamp: base.Add(2 * time.Minute), DurationSeconds: 612},
	}
	for _, e := range entries {
		require.NoError(t, repo.Append(ctx, e))
	}

	summary, err := repo.TopPreferences(ctx, 3)
	require.NoError(t, err)
	require.Len(t, summary.Moods, 2)
	assert.Equal(t, "calm", summary.Moods[0].Key)
	assert.Equal(t, 2, summary.Moods[0].Positive)
	assert.Equal(t, "focus", summary.Moods[1].Key)
	assert.Equal(t, 1, summary.Moods[1].Negative)
	require.Len(t, summary.Durations, 1)
	assert.Equal(t, "10-11min", summary.Durations[0].Key)
}

func TestFeedbackRepository_AppendRejectsInvalidRating(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFeedbackRepository(pool)

	err := repo.Append(ctx, domain.FeedbackEntry{
		Reference: "https://example.com/a.mp3",
		Mood:      "calm",
		Rating:    0,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRating)
}

func TestFeedbackRepository_LastFeedbackAt(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFeedbackRepository(pool)

	last, err := repo.LastFeedbackAt(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	stamp := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.Append(ctx, domain.FeedbackEntry{
		UserID:    "u1",
		Reference: "https://example.com/a.mp3",
		Mood:      "calm",
		Rating:    4,
		Timestamp: stamp,
	}))

	last, err = repo.LastFeedbackAt(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, stamp, last)
}
