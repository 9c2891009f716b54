package jobs

import (
	"context"
	"log"

	"github.com/calmstack/mantra/internal/domain"
)

type MoodLister interface {
	MoodNames() []string
}

type CacheWarmer interface {
	Warm(ctx context.Context, query domain.MoodQuery) error
}

// Warmer pre-populates the fetch cache for every catalog mood so first
// requests after a cold start hit the cache instead of the sources.
// Moods that already have cached candidates are skipped.
type Warmer struct {
	moods    MoodLister
	warmer   CacheWarmer
	language string
}

func NewWarmer(moods MoodLister, warmer CacheWarmer, language string) *Warmer {
	if language == "" {
		language = "english"
	}
	return &Warmer{moods: moods, warmer: warmer, language: language}
}

// ProcessJobs warms one full catalog pass. Individual mood failures are
// logged and skipped; the pass always visits every mood.
func (w *Warmer) ProcessJobs(ctx context.Context) error {
	for _, mood := range w.moods.MoodNames() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		query := domain.MoodQuery{Mood: mood, Language: w.language}
		if err := w.warmer.Warm(ctx, query); err != nil {
			log.Printf("warmer: failed to warm %q: %v", query.Key(), err)
		}
	}
	return nil
}
