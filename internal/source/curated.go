package source

import (
	"context"
	"math/rand"
	"sync"

	"github.com/calmstack/mantra/internal/catalog"
	"github.com/calmstack/mantra/internal/domain"
)

// CuratedSource serves hand-picked references from the mood catalog. It is
// the highest-reliability tier: no network involved, every entry vetted.
type CuratedSource struct {
	catalog *catalog.Catalog
	window  DurationWindow

	mu  sync.Mutex
	rng *rand.Rand
}

// NewCuratedSource creates a curated source over the given catalog.
func NewCuratedSource(cat *catalog.Catalog, window DurationWindow, seed int64) *CuratedSource {
	return &CuratedSource{
		catalog: cat,
		window:  window,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (s *CuratedSource) ID() string { return "curated" }

// Find picks uniformly at random among the non-excluded, duration-suitable
// curated items for the mood.
func (s *CuratedSource) Find(ctx context.Context, query domain.MoodQuery, excluded Excluded) (*domain.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrNotFound
	}

	q := query.Normalized()
	var pool []catalog.CuratedItem
	for _, item := range s.catalog.CuratedFor(q.Mood) {
		if excluded.Has(item.Reference) {
			continue
		}
		if item.DurationSeconds > 0 && !s.window.SuitableSeconds(item.DurationSeconds) {
			continue
		}
		pool = append(pool, item)
	}
	if len(pool) == 0 {
		return nil, ErrNotFound
	}

	s.mu.Lock()
	pick := pool[s.rng.Intn(len(pool))]
	s.mu.Unlock()

	return &domain.Candidate{
		SourceID:        s.ID(),
		Reference:       pick.Reference,
		Title:           pick.Title,
		DurationSeconds: pick.DurationSeconds,
	}, nil
}
