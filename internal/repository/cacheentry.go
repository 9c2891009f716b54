package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calmstack/mantra/internal/domain"
)

// CacheRepository is the Postgres-backed fetch cache. Same contract as the
// file cache: a dumb key to candidate-list store, append-only per key.
type CacheRepository struct {
	pool *pgxpool.Pool
}

func NewCacheRepository(pool *pgxpool.Pool) *CacheRepository {
	return &CacheRepository{pool: pool}
}

func (r *CacheRepository) Get(ctx context.Context, key string) ([]domain.Candidate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT candidate FROM cache_entries WHERE cache_key = $1 ORDER BY created_at ASC`,
		key,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []domain.Candidate
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var cand domain.Candidate
		if err := json.Unmarshal(raw, &cand); err != nil {
			// A corrupt row is skipped, not fatal.
			continue
		}
		candidates = append(candidates, cand)
	}
	return candidates, rows.Err()
}

func (r *CacheRepository) Put(ctx context.Context, key string, cand domain.Candidate) error {
	raw, err := json.Marshal(cand)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO cache_entries (cache_key, reference, candidate, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (cache_key, reference) DO NOTHING`,
		key, cand.Reference, raw, time.Now().UTC(),
	)
	return err
}

// Keys lists the distinct cache keys, for the admin CLI.
func (r *CacheRepository) Keys(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT cache_key FROM cache_entries ORDER BY cache_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Clear removes every entry under key.
func (r *CacheRepository) Clear(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cache_entries WHERE cache_key = $1`, key)
	return err
}
