package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calmstack/mantra/internal/domain"
	"github.com/calmstack/mantra/internal/feedback"
)

// FeedbackRepository is the Postgres-backed feedback log. Aggregation
// loads the log and reuses the in-memory summarizer so file and database
// deployments rank preferences identically.
type FeedbackRepository struct {
	pool *pgxpool.Pool
}

func NewFeedbackRepository(pool *pgxpool.Pool) *FeedbackRepository {
	return &FeedbackRepository{pool: pool}
}

func (r *FeedbackRepository) Append(ctx context.Context, entry domain.FeedbackEntry) error {
	if entry.Rating < 1 || entry.Rating > 5 {
		return domain.ErrInvalidRating
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO feedback (user_id, reference, mood, source_id, duration_seconds, rating, comment, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		nullableString(entry.UserID), entry.Reference, entry.Mood,
		nullableString(entry.SourceID), entry.DurationSeconds, entry.Rating,
		nullableString(entry.Comment), entry.Timestamp,
	)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodePersistenceUnavailable,
			"failed to persist feedback", err)
	}
	return nil
}

func (r *FeedbackRepository) TopPreferences(ctx context.Context, n int) (domain.PreferenceSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, reference, mood, source_id, duration_seconds, rating, comment, created_at
		 FROM feedback ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return domain.PreferenceSummary{}, err
	}
	defer rows.Close()

	var entries []domain.FeedbackEntry
	for rows.Next() {
		var e domain.FeedbackEntry
		var user, sourceID, comment *string
		if err := rows.Scan(&user, &e.Reference, &e.Mood, &sourceID, &e.DurationSeconds, &e.Rating, &comment, &e.Timestamp); err != nil {
			return domain.PreferenceSummary{}, err
		}
		e.UserID = deref(user)
		e.SourceID = deref(sourceID)
		e.Comment = deref(comment)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return domain.PreferenceSummary{}, err
	}
	return feedback.Summarize(entries, n), nil
}

func (r *FeedbackRepository) LastFeedbackAt(ctx context.Context, userID string) (time.Time, error) {
	var last time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT created_at FROM feedback WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`,
		userID,
	).Scan(&last)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return last, nil
}
