// Package feedback records user ratings and aggregates them into
// preference summaries used to bias future retrievals and the UI.
package feedback

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/calmstack/mantra/internal/domain"
)

// Store is the feedback log contract.
type Store interface {
	Append(ctx context.Context, entry domain.FeedbackEntry) error
	// TopPreferences returns the n most positively rated moods, sources
	// and duration buckets.
	TopPreferences(ctx context.Context, n int) (domain.PreferenceSummary, error)
	// LastFeedbackAt returns the zero time when the user never rated.
	LastFeedbackAt(ctx context.Context, userID string) (time.Time, error)
}

// counter tracks ratings for one key, remembering insertion order so ties
// resolve deterministically.
type counter struct {
	domain.PreferenceCount
	order int
}

// MemoryStore keeps the feedback log in memory. The durable stores embed
// it and add persistence around Append.
type MemoryStore struct {
	mu      sync.Mutex
	entries []domain.FeedbackEntry
	lastAt  map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lastAt: map[string]time.Time{}}
}

// Append validates and records one entry.
func (s *MemoryStore) Append(ctx context.Context, entry domain.FeedbackEntry) error {
	if entry.Rating < 1 || entry.Rating > 5 {
		return domain.ErrInvalidRating
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	if entry.UserID != "" {
		s.lastAt[entry.UserID] = entry.Timestamp
	}
	return nil
}

func (s *MemoryStore) TopPreferences(ctx context.Context, n int) (domain.PreferenceSummary, error) {
	s.mu.Lock()
	entries := append([]domain.FeedbackEntry(nil), s.entries...)
	s.mu.Unlock()
	return Summarize(entries, n), nil
}

func (s *MemoryStore) LastFeedbackAt(ctx context.Context, userID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAt[userID], nil
}

// Entries returns a copy of the log, oldest first.
func (s *MemoryStore) Entries() []domain.FeedbackEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.FeedbackEntry(nil), s.entries...)
}

// Summarize aggregates a feedback log into top-n preference counts per
// dimension. Ordering is positive count descending, then total descending,
// then first-seen order.
func Summarize(entries []domain.FeedbackEntry, n int) domain.PreferenceSummary {
	moods := map[string]*counter{}
	sources := map[string]*counter{}
	durations := map[string]*counter{}
	order := 0

	bump := func(m map[string]*counter, key string, e domain.FeedbackEntry) {
		if key == "" {
			return
		}
		c, ok := m[key]
		if !ok {
			c = &counter{PreferenceCount: domain.PreferenceCount{Key: key}, order: order}
			order++
			m[key] = c
		}
		c.Total++
		if e.Positive() {
			c.Positive++
		}
		if e.Negative() {
			c.Negative++
		}
	}

	for _, e := range entries {
		bump(moods, e.Mood, e)
		bump(sources, e.SourceID, e)
		if e.DurationSeconds > 0 {
			bump(durations, domain.DurationBucket(e.DurationSeconds), e)
		}
	}

	return domain.PreferenceSummary{
		Moods:     top(moods, n),
		Sources:   top(sources, n),
		Durations: top(durations, n),
	}
}

func top(m map[string]*counter, n int) []domain.PreferenceCount {
	counters := make([]*counter, 0, len(m))
	for _, c := range m {
		counters = append(counters, c)
	}
	sort.Slice(counters, func(i, j int) bool {
		a, b := counters[i], counters[j]
		if a.Positive != b.Positive {
			return a.Positive > b.Positive
		}
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.order < b.order
	})
	if n > 0 && len(counters) > n {
		counters = counters[:n]
	}
	out := make([]domain.PreferenceCount, len(counters))
	for i, c := range counters {
		out[i] = c.PreferenceCount
	}
	return out
}
