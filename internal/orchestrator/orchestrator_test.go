package orchestrator

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmstack/mantra/internal/cache"
	"github.com/calmstack/mantra/internal/catalog"
	"github.com/calmstack/mantra/internal/domain"
	"github.com/calmstack/mantra/internal/source"
	"github.com/calmstack/mantra/internal/validate"
)

// stubSource proposes its references in order, skipping excluded ones.
type stubSource struct {
	id   string
	refs []string
}

func (s *stubSource) ID() string { return s.id }

func (s *stubSource) Find(ctx context.Context, query domain.MoodQuery, excluded source.Excluded) (*domain.Candidate, error) {
	for _, ref := range s.refs {
		if !excluded.Has(ref) {
			return &domain.Candidate{SourceID: s.id, Reference: ref}, nil
		}
	}
	return nil, source.ErrNotFound
}

// stubFetcher maps references to canned bytes, writing them to disk the
// way the real fetcher does. References without bytes fail to fetch.
type stubFetcher struct {
	dir   string
	bytes map[string][]byte
}

func (f *stubFetcher) Fetch(ctx context.Context, reference string) (string, error) {
	data, ok := f.bytes[reference]
	if !ok {
		return "", fmt.Errorf("fetch failed for %s", reference)
	}
	path := filepath.Join(f.dir, fmt.Sprintf("%x.audio", len(reference))+filepath.Base(reference))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// goodWAV is ten loud seconds of mono 16-bit PCM at 8000 Hz, inside the
// test validator's ideal window.
func goodWAV() []byte {
	const sampleRate = 8000
	var samples bytes.Buffer
	for i := 0; i < sampleRate*10; i++ {
		binary.Write(&samples, binary.LittleEndian, int16(8192))
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+samples.Len()))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(samples.Len()))
	buf.Write(samples.Bytes())
	return buf.Bytes()
}

func testValidator() *validate.Validator {
	return validate.New(validate.Config{
		IdealMinSeconds:    8,
		IdealMaxSeconds:    12,
		FallbackMinSeconds: 5,
		FallbackMaxSeconds: 15,
		MinBitrateKbps:     64,
		MinSampleRateHz:    8000,
		QuietThresholdDBFS: -45,
		SilenceThresholdDB: -40,
		MaxIntroSilenceSec: 2,
		MaxOutroSilenceSec: 1,
		SoftPass:           true,
	})
}

type fixture struct {
	orch  *Orchestrator
	store cache.Store
}

func newFixture(t *testing.T, cfg Config, sources []source.Client, artifacts map[string][]byte, opts ...Option) *fixture {
	t.Helper()
	store := cache.NewFileCache(filepath.Join(t.TempDir(), "cache.json"))
	fetcher := &stubFetcher{dir: t.TempDir(), bytes: artifacts}
	orch, err := New(cfg, sources, fetcher, testValidator(), store, catalog.Default(), opts...)
	require.NoError(t, err)
	return &fixture{orch: orch, store: store}
}

func TestNewRequiresSources(t *testing.T) {
	_, err := New(Config{}, nil, nil, nil, nil, catalog.Default())
	assert.Error(t, err)
}

func TestRetrieveRequiresMood(t *testing.T) {
	fx := newFixture(t, Config{}, []source.Client{&stubSource{id: "a"}}, nil)
	_, err := fx.orch.Retrieve(context.Background(), domain.MoodQuery{}, "")
	assert.Error(t, err)
}

func TestRetrieveAcceptsAndCaches(t *testing.T) {
	ctx := context.Background()
	ref := "https://example.com/good.wav"
	fx := newFixture(t, Config{},
		[]source.Client{&stubSource{id: "curated", refs: []string{ref}}},
		map[string][]byte{ref: goodWAV()},
	)

	res, err := fx.orch.Retrieve(ctx, domain.MoodQuery{Mood: "Calm"}, "")
	require.NoError(t, err)

	assert.True(t, res.Accepted)
	assert.False(t, res.Fallback)
	assert.False(t, res.FromCache)
	assert.Equal(t, "curated", res.Source)
	assert.Equal(t, ref, res.Candidate.Reference)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, res.Excluded)

	cached, err := fx.store.Get(ctx, "calm|english")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, ref, cached[0].Reference)
}

func TestRetrieveServesFromCache(t *testing.T) {
	ctx := context.Background()
	ref := "https://example.com/cached.wav"
	fx := newFixture(t, Config{},
		[]source.Client{&stubSource{id: "curated"}},
		map[string][]byte{ref: goodWAV()},
	)
	require.NoError(t, fx.store.Put(ctx, "calm|english", domain.Candidate{SourceID: "archive", Reference: ref}))

	res, err := fx.orch.Retrieve(ctx, domain.MoodQuery{Mood: "calm"}, "")
	require.NoError(t, err)

	assert.True(t, res.Accepted)
	assert.True(t, res.FromCache)
	assert.Equal(t, "archive", res.Source)
	assert.Equal(t, ref, res.Candidate.Reference)
}

func TestRetrieveFallsBackWhenSourcesEmpty(t *testing.T) {
	fx := newFixture(t, Config{},
		[]source.Client{&stubSource{id: "curated"}, &stubSource{id: "archive"}},
		nil,
	)

	res, err := fx.orch.Retrieve(context.Background(), domain.MoodQuery{Mood: "calm"}, "")
	require.NoError(t, err)

	assert.False(t, res.Accepted)
	assert.True(t, res.Fallback)
	assert.Equal(t, "fallback", res.Source)
	assert.Equal(t, catalog.Default().FallbackFor("calm"), res.Candidate.Reference)
	assert.Equal(t, 0, res.Attempts)
}

func TestRetrieveSkipsFailingSources(t *testing.T) {
	ctx := context.Background()
	badFetch := "https://example.com/unreachable.wav"
	badAudio := "https://example.com/garbage.wav"
	good := "https://example.com/good.wav"

	fx := newFixture(t, Config{},
		[]source.Client{
			&stubSource{id: "curated", refs: []string{badFetch}},
			&stubSource{id: "archive", refs: []string{badAudio}},
			&stubSource{id: "scrape", refs: []string{good}},
		},
		map[string][]byte{
			badAudio: []byte("this is not audio at all, not even close"),
			good:     goodWAV(),
		},
	)

	res, err := fx.orch.Retrieve(ctx, domain.MoodQuery{Mood: "calm"}, "")
	require.NoError(t, err)

	assert.True(t, res.Accepted)
	assert.Equal(t, "scrape", res.Source)
	assert.Equal(t, good, res.Candidate.Reference)
	assert.ElementsMatch(t, []string{badFetch, badAudio}, res.Excluded)
}

func TestRetrieveRespectsGlobalBudget(t *testing.T) {
	// Ten distinct rejectable candidates across two sources; the global
	// budget must stop the run at five attempts and serve the fallback.
	refs1 := make([]string, 5)
	refs2 := make([]string, 5)
	artifacts := map[string][]byte{}
	for i := range refs1 {
		refs1[i] = fmt.Sprintf("https://example.com/bad1-%d.wav", i)
		refs2[i] = fmt.Sprintf("https://example.com/bad2-%d.wav", i)
		artifacts[refs1[i]] = []byte("garbage that is long enough to not be audio")
		artifacts[refs2[i]] = []byte("garbage that is long enough to not be audio")
	}

	fx := newFixture(t, Config{SourceAttempts: 5, AttemptBudget: 5},
		[]source.Client{
			&stubSource{id: "curated", refs: refs1},
			&stubSource{id: "archive", refs: refs2},
		},
		artifacts,
	)

	res, err := fx.orch.Retrieve(context.Background(), domain.MoodQuery{Mood: "calm"}, "")
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	assert.Equal(t, 5, res.Attempts)
	assert.Len(t, res.Excluded, 5)
}

type stubHistory struct {
	refs []string
}

func (s *stubHistory) RecentlyWatched(ctx context.Context, userID string, limit int) ([]string, error) {
	return s.refs, nil
}

func TestRetrieveCacheStarvationGuard(t *testing.T) {
	// Both cached candidates are in the user's recent history. The cache
	// must still serve one rather than starve the mood.
	ctx := context.Background()
	refA := "https://example.com/a.wav"
	refB := "https://example.com/b.wav"

	fx := newFixture(t, Config{},
		[]source.Client{&stubSource{id: "curated"}},
		map[string][]byte{refA: goodWAV(), refB: goodWAV()},
		WithHistory(&stubHistory{refs: []string{refA, refB}}),
	)
	require.NoError(t, fx.store.Put(ctx, "calm|english", domain.Candidate{SourceID: "curated", Reference: refA}))
	require.NoError(t, fx.store.Put(ctx, "calm|english", domain.Candidate{SourceID: "curated", Reference: refB}))

	res, err := fx.orch.Retrieve(ctx, domain.MoodQuery{Mood: "calm"}, "user-1")
	require.NoError(t, err)

	assert.True(t, res.Accepted)
	assert.True(t, res.FromCache)
	assert.Contains(t, []string{refA, refB}, res.Candidate.Reference)
}

func TestRetrieveExcludesRecentlyServed(t *testing.T) {
	// With two cached candidates, two retrievals in a row must not hand
	// out the same reference: the second pick comes from the non-excluded
	// subset.
	ctx := context.Background()
	refA := "https://example.com/a.wav"
	refB := "https://example.com/b.wav"

	fx := newFixture(t, Config{},
		[]source.Client{&stubSource{id: "curated"}},
		nil,
	)
	require.NoError(t, fx.store.Put(ctx, "calm|english", domain.Candidate{SourceID: "curated", Reference: refA}))
	require.NoError(t, fx.store.Put(ctx, "calm|english", domain.Candidate{SourceID: "curated", Reference: refB}))

	first, err := fx.orch.Retrieve(ctx, domain.MoodQuery{Mood: "calm"}, "")
	require.NoError(t, err)
	second, err := fx.orch.Retrieve(ctx, domain.MoodQuery{Mood: "calm"}, "")
	require.NoError(t, err)

	assert.True(t, first.FromCache)
	assert.True(t, second.FromCache)
	assert.NotEqual(t, first.Candidate.Reference, second.Candidate.Reference)
}

func TestWarmPopulatesEmptyCache(t *testing.T) {
	ctx := context.Background()
	ref := "https://example.com/warm.wav"
	fx := newFixture(t, Config{},
		[]source.Client{&stubSource{id: "curated", refs: []string{ref}}},
		map[string][]byte{ref: goodWAV()},
	)

	require.NoError(t, fx.orch.Warm(ctx, domain.MoodQuery{Mood: "calm"}))

	cached, err := fx.store.Get(ctx, "calm|english")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, ref, cached[0].Reference)

	// A warm retrieval must still be able to serve the warmed candidate:
	// warming does not mark it recently used.
	res, err := fx.orch.Retrieve(ctx, domain.MoodQuery{Mood: "calm"}, "")
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, ref, res.Candidate.Reference)
}

func TestConcurrentDuplicateReferenceValidatedOnce(t *testing.T) {
	// Two sources proposing the same rejectable reference in one round
	// must spend one attempt on it, not two.
	ctx := context.Background()
	dup := "https://example.com/dup.wav"
	fx := newFixture(t, Config{Concurrent: true},
		[]source.Client{
			&stubSource{id: "curated", refs: []string{dup}},
			&stubSource{id: "archive", refs: []string{dup}},
		},
		map[string][]byte{dup: []byte("garbage that is long enough to not be audio")},
	)

	res, err := fx.orch.Retrieve(ctx, domain.MoodQuery{Mood: "calm"}, "")
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, []string{dup}, res.Excluded)
}

func TestConcurrentRetrieveAccepts(t *testing.T) {
	ctx := context.Background()
	good := "https://example.com/good.wav"
	fx := newFixture(t, Config{Concurrent: true},
		[]source.Client{
			&stubSource{id: "curated"},
			&stubSource{id: "archive", refs: []string{good}},
		},
		map[string][]byte{good: goodWAV()},
	)

	res, err := fx.orch.Retrieve(ctx, domain.MoodQuery{Mood: "calm"}, "")
	require.NoError(t, err)

	assert.True(t, res.Accepted)
	assert.Equal(t, "archive", res.Source)
}
