// Package orchestrator runs the retrieval state machine: cache lookup,
// prioritized source querying with bounded retries, validation, and a
// guaranteed fallback when every strategy is exhausted.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/calmstack/mantra/internal/cache"
	"github.com/calmstack/mantra/internal/catalog"
	"github.com/calmstack/mantra/internal/domain"
	"github.com/calmstack/mantra/internal/fetch"
	"github.com/calmstack/mantra/internal/source"
	"github.com/calmstack/mantra/internal/telemetry"
	"github.com/calmstack/mantra/internal/validate"
)

// HistoryProvider returns the references a user recently received, used to
// seed the exclusion set across restarts. Optional.
type HistoryProvider interface {
	RecentlyWatched(ctx context.Context, userID string, limit int) ([]string, error)
}

// Mirror uploads an accepted artifact to durable storage. Best-effort:
// failures are logged and never affect the retrieval outcome. Optional.
type Mirror interface {
	MirrorArtifact(ctx context.Context, query domain.MoodQuery, reference, localPath string) error
}

// Config bounds a retrieval run.
type Config struct {
	// SourceAttempts is the per-source candidate budget.
	SourceAttempts int
	// AttemptBudget is the global fetch+validate budget across all sources
	// and the cache.
	AttemptBudget int
	RecentLimit   int
	SourceTimeout time.Duration
	FetchTimeout  time.Duration
	// Concurrent queries all sources at once instead of in priority order.
	Concurrent bool
	// FallbackTitle names the static fallback in session history.
	FallbackTitle string
}

// Result is the outcome of one retrieval run. Accepted is false only when
// the run exhausted its budgets and fell back to the static reference.
type Result struct {
	Accepted  bool
	Candidate domain.Candidate
	Report    domain.ValidationReport
	Source    string
	FromCache bool
	Fallback  bool
	// Excluded lists every reference rejected during this run.
	Excluded []string
	Attempts int
}

// Orchestrator wires the sources, validator, fetcher, and cache into one
// retrieval pipeline. Safe for concurrent use.
type Orchestrator struct {
	cfg       Config
	sources   []source.Client
	fetcher   fetch.Fetcher
	validator *validate.Validator
	store     cache.Store
	recent    *cache.RecentlyUsed
	catalog   *catalog.Catalog
	history   HistoryProvider
	mirror    Mirror

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures optional collaborators.
type Option func(*Orchestrator)

// WithHistory seeds per-user exclusions from durable session history.
func WithHistory(h HistoryProvider) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithMirror uploads accepted artifacts to durable storage.
func WithMirror(m Mirror) Option {
	return func(o *Orchestrator) { o.mirror = m }
}

// New builds an orchestrator. At least one source is required: the
// fallback only covers exhaustion, not an empty pipeline.
func New(cfg Config, sources []source.Client, fetcher fetch.Fetcher, validator *validate.Validator, store cache.Store, cat *catalog.Catalog, opts ...Option) (*Orchestrator, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("orchestrator requires at least one source")
	}
	if cfg.SourceAttempts <= 0 {
		cfg.SourceAttempts = 3
	}
	if cfg.AttemptBudget <= 0 {
		cfg.AttemptBudget = 5
	}
	o := &Orchestrator{
		cfg:       cfg,
		sources:   sources,
		fetcher:   fetcher,
		validator: validator,
		store:     store,
		recent:    cache.NewRecentlyUsed(cfg.RecentLimit),
		catalog:   cat,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Retrieve runs the full pipeline for one query. It always returns a
// usable result: on exhaustion the static fallback is substituted and
// Fallback is set.
func (o *Orchestrator) Retrieve(ctx context.Context, query domain.MoodQuery, userID string) (*Result, error) {
	query = query.Normalized()
	if query.Mood == "" {
		return nil, domain.ErrMissingMood
	}

	ctx, span := telemetry.StartSpan(ctx, "retrieve", telemetry.SpanAttributes{
		Mood:     query.Mood,
		Language: query.Language,
	})
	defer span.End()

	excluded := source.NewExcluded(o.recent.Values()...)
	o.seedHistory(ctx, userID, excluded)
	rejected := source.NewExcluded()

	budget := newBudget(o.cfg.AttemptBudget)

	if res := o.fromCache(ctx, query, excluded); res != nil {
		return res, nil
	}

	var res *Result
	if o.cfg.Concurrent {
		res = o.fromSourcesConcurrent(ctx, query, excluded, rejected, budget)
	} else {
		res = o.fromSources(ctx, query, excluded, rejected, budget)
	}
	if res != nil {
		return res, nil
	}

	return o.fallback(query, rejected, budget), nil
}

// fromCache serves a cached candidate for the query. Cached entries were
// validated when they were admitted, so a hit is served directly without
// another fetch+validate cycle and without spending budget. When every
// cached entry is excluded the exclusion filter is lifted for the cache
// only, so a small cache cannot starve a mood that has known-good content.
func (o *Orchestrator) fromCache(ctx context.Context, query domain.MoodQuery, excluded source.Excluded) *Result {
	cached, err := o.store.Get(ctx, query.Key())
	if err != nil {
		log.Printf("retrieve: cache lookup failed, continuing without cache: %v", err)
		return nil
	}
	if len(cached) == 0 {
		return nil
	}

	eligible := make([]domain.Candidate, 0, len(cached))
	for _, c := range cached {
		if !excluded.Has(c.Reference) {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		log.Printf("retrieve: all %d cached candidates for %q recently used, reusing cache anyway", len(cached), query.Key())
		eligible = cached
	}

	cand := eligible[o.pick(len(eligible))]
	o.recent.Add(cand.Reference)
	return &Result{
		Accepted:  true,
		Candidate: cand,
		Source:    cand.SourceID,
		FromCache: true,
	}
}

// pick returns a uniform random index below n.
func (o *Orchestrator) pick(n int) int {
	if n <= 1 {
		return 0
	}
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	return o.rng.Intn(n)
}

// fromSources walks the sources in priority order, spending at most
// SourceAttempts candidates per source and the global budget overall.
func (o *Orchestrator) fromSources(ctx context.Context, query domain.MoodQuery, excluded, rejected source.Excluded, budget *budget) *Result {
	for _, src := range o.sources {
		for attempt := 0; attempt < o.cfg.SourceAttempts; attempt++ {
			if budget.exhausted() {
				return nil
			}
			cand, err := o.findOne(ctx, src, query, excluded)
			if err != nil {
				if !errors.Is(err, source.ErrNotFound) {
					log.Printf("retrieve: source %s failed: %v", src.ID(), err)
				}
				break
			}
			budget.spend()
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
				Source:    src.ID(),
				Excluded:  rejected.Values(),
				Attempts:  budget.spent(),
			}
		}
	}
	return nil
}

func (o *Orchestrator) findOne(ctx context.Context, src source.Client, query domain.MoodQuery, excluded source.Excluded) (*domain.Candidate, error) {
	if o.cfg.SourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.SourceTimeout)
		defer cancel()
	}
	return src.Find(ctx, query, excluded)
}

// tryCandidate fetches and validates one candidate. A fetch failure is
// treated exactly like a validation rejection.
func (o *Orchestrator) tryCandidate(ctx context.Context, query domain.MoodQuery, cand domain.Candidate, rejected source.Excluded) (domain.ValidationReport, bool) {
	fetchCtx := ctx
	if o.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, o.cfg.FetchTimeout)
		defer cancel()
	}
	path, err := o.fetcher.Fetch(fetchCtx, cand.Reference)
	if err != nil {
		log.Printf("retrieve: fetch failed for %s: %v", cand.Reference, err)
		rejected.Add(cand.Reference)
		return domain.ValidationReport{}, false
	}
	report := o.validator.Validate(path)
	if !report.Accepted {
		log.Printf("retrieve: rejected %s: %v", cand.Reference, report.Issues)
		rejected.Add(cand.Reference)
		return report, false
	}
	return report, true
}

// accept records a validated candidate: cache, recently-used window, and
// the optional durable mirror. Cache failures degrade, they never fail
// the run.
func (o *Orchestrator) accept(ctx context.Context, query domain.MoodQuery, cand domain.Candidate) {
	if err := o.store.Put(ctx, query.Key(), cand); err != nil {
		log.Printf("retrieve: cache write failed, result still served: %v", err)
	}
	o.recent.Add(cand.Reference)
	if o.mirror != nil {
		if path, err := o.fetcher.Fetch(ctx, cand.Reference); err == nil {
			if err := o.mirror.MirrorArtifact(ctx, query, cand.Reference, path); err != nil {
				log.Printf("retrieve: mirror upload failed: %v", err)
			}
		}
	}
}

// Warm populates the cache for a query that has no cached candidates yet.
// Unlike Retrieve it never touches the recently-used window, so warming
// cannot shadow candidates from users.
func (o *Orchestrator) Warm(ctx context.Context, query domain.MoodQuery) error {
	query = query.Normalized()
	cached, err := o.store.Get(ctx, query.Key())
	if err != nil {
		return err
	}
	if len(cached) > 0 {
		return nil
	}

	excluded := source.NewExcluded()
	rejected := source.NewExcluded()
	budget := newBudget(o.cfg.AttemptBudget)
	for _, src := range o.sources {
		for attempt := 0; attempt < o.cfg.SourceAttempts; attempt++ {
			if !budget.spend() {
				return nil
			}
			cand, err := o.findOne(ctx, src, query, excluded)
			if err != nil {
				break
			}
			if _, ok := o.tryCandidate(ctx, query, *cand, rejected); !ok {
				excluded.Add(cand.Reference)
				continue
			}
			if err := o.store.Put(ctx, query.Key(), *cand); err != nil {
				return err
			}
			return nil
		}
	}
	return nil
}

// fallback returns the static per-mood reference. Never validated, never
// cached, never added to the recently-used window.
func (o *Orchestrator) fallback(query domain.MoodQuery, rejected source.Excluded, budget *budget) *Result {
	ref := o.catalog.FallbackFor(query.Mood)
	title := o.cfg.FallbackTitle
	if title == "" {
		title = "Guided meditation"
	}
	log.Printf("retrieve: all sources exhausted for %q, serving fallback", query.Key())
	return &Result{
		Accepted: false,
		Candidate: domain.Candidate{
			SourceID:  "fallback",
			Reference: ref,
			Title:     title,
		},
		Source:   "fallback",
		Fallback: true,
		Excluded: rejected.Values(),
		Attempts: budget.spent(),
	}
}

func (o *Orchestrator) seedHistory(ctx context.Context, userID string, excluded source.Excluded) {
	if o.history == nil || userID == "" {
		return
	}
	refs, err := o.history.RecentlyWatched(ctx, userID, o.cfg.RecentLimit)
	if err != nil {
		log.Printf("retrieve: history lookup failed, continuing without it: %v", err)
		return
	}
	for _, ref := range refs {
		excluded.Add(ref)
	}
}
