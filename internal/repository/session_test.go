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

func newSession(userID, reference string, createdAt time.Time) *domain.Session {
	return &domain.Session{
		UserID:    userID,
		Mood:      "calm",
		Language:  "english",
		Reference: reference,
		Title:     "Calm session",
		SourceID:  "archive",
		CreatedAt: createdAt,
	}
}

func TestSessionRepository_CreateAndGetByUser(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSessionRepository(pool)

	session := newSession("user-1", "https://example.com/a.mp3", time.Time{})
	require.NoError(t, repo.Create(ctx, session))
	assert.NotEmpty(t, session.ID)
	assert.False(t, session.CreatedAt.IsZero())

	sessions, err := repo.GetByUser(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, session.ID, sessions[0].ID)
	assert.Equal(t, "calm", sessions[0].Mood)
	assert.Equal(t, "https://example.com/a.mp3", sessions[0].Reference)
	assert.Equal(t, "archive", sessions[0].SourceID)
}

func TestSessionRepository_AnonymousSession(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSessionRepository(pool)

	session := newSession("", "https://example.com/a.mp3", time.Time{})
	session.Title = ""
	session.SourceID = ""
	require.NoError(t, repo.Create(ctx, session))

	sessions, err := repo.GetByUser(ctx, "", 10)
	require.NoError(t, err)
	// NULL user_id never matches an equality lookup.
	assert.Empty(t, sessions)
}

func TestSessionRepository_RecentlyWatched(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSessionRepository(pool)

	base := time.Now().UTC().Add(-time.Hour)
	for i, ref := range []string{
		"https://example.com/oldest.mp3",
		"https://example.com/middle.mp3",
		"https://example.com/newest.mp3",
	} {
		require.NoError(t, repo.Create(ctx, newSession("user-1", ref, base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, repo.Create(ctx, newSession("user-2", "https://example.com/other.mp3", base)))

	refs, err := repo.RecentlyWatched(ctx, "user-1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.com/newest.mp3",
		"https://example.com/middle.mp3",
	}, refs)

	all, err := repo.RecentlyWatched(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
