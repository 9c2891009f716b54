package orchestrator

import (
	"context"
	"errors"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/calmstack/mantra/internal/domain"
	"github.com/calmstack/mantra/internal/source"
)

// fromSourcesConcurrent queries every source at once and then validates
// the collected candidates in priority order. Trades extra source load for
// latency; validation itself stays sequential so the budget semantics
// match the ordered path.
func (o *Orchestrator) fromSourcesConcurrent(ctx context.Context, query domain.MoodQuery, excluded, rejected source.Excluded, budget *budget) *Result {
	for round := 0; round < o.cfg.SourceAttempts; round++ {
		if budget.exhausted() {
			return nil
		}
		found := o.collectCandidates(ctx, query, excluded)
		if len(found) == 0 {
			return nil
		}
		for _, cand := range found {
			if cand == nil || excluded.Has(cand.Reference) {
				continue
			}
			if !budget.spend() {
				return nil
			}
			report, ok := o.tryCandidate(ctx, query, *cand, rejected)
			if !ok {
				excluded.Add(cand.Reference)
				continue
			}
			o.accept(ctx, query, *cand)
			return &Result{
				Accepted:  true,
				Candidate: *cand,
				Report:    report,
				Source:    cand.SourceID,
				Excluded:  rejected.Values(),
				Attempts:  budget.spent(),
			}
		}
	}
	return nil
}

// collectCandidates asks every source for one candidate concurrently.
// Results keep source priority order. The exclusion set is snapshotted per
// source, so two sources can still hand back the same reference within a
// round; the validation pass skips references excluded since the snapshot.
func (o *Orchestrator) collectCandidates(ctx context.Context, query domain.MoodQuery, excluded source.Excluded) []*domain.Candidate {
	var mu sync.Mutex
	found := make([]*domain.Candidate, len(o.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range o.sources {
		g.Go(func() error {
			mu.Lock()
			snapshot := source.NewExcluded(excluded.Values()...)
			mu.Unlock()

			cand, err := o.findOne(gctx, src, query, snapshot)
			if err != nil {
				if !errors.Is(err, source.ErrNotFound) {
					log.Printf("retrieve: source %s failed: %v", src.ID(), err)
				}
				return nil
			}
			mu.Lock()
			found[i] = cand
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	out := found[:0]
	for _, c := range found {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}
