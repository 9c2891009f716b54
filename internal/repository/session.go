package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calmstack/mantra/internal/domain"
)

// SessionRepository persists served meditations. It doubles as the
// durable per-user history backing the orchestrator's exclusion seeding.
type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, mood, language, reference, title, source_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		session.ID, nullableString(session.UserID), session.Mood, session.Language,
		session.Reference, nullableString(session.Title), nullableString(session.SourceID),
		session.CreatedAt,
	)
	return err
}

// RecentlyWatched returns the references most recently served to a user,
// newest first.
func (r *SessionRepository) RecentlyWatched(ctx context.Context, userID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := r.pool.Query(ctx,
		`SELECT reference FROM sessions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (r *SessionRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, mood, language, reference, title, source_id, created_at
		 FROM sessions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		var s domain.Session
		var user, title, sourceID *string
		if err := rows.Scan(&s.ID, &user, &s.Mood, &s.Language, &s.Reference, &title, &sourceID, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.UserID = deref(user)
		s.Title = deref(title)
		s.SourceID = deref(sourceID)
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
