package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body>
<div class="track">
  <span class="duration">10:30</span>
  <a href="/audio/calm-one.mp3">Calm one</a>
</div>
<div class="track">
  <span class="duration">1:10:00</span>
  <a href="/audio/marathon.mp3">Marathon</a>
</div>
<div class="track">
  <span class="duration">3:00</span>
  <a href="/audio/snippet.mp3">Snippet</a>
</div>
<div class="track">
  <a href="/audio/no-duration.mp3">No duration</a>
</div>
</body></html>`

func scrapeServer(t *testing.T, page string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newScrapeFixture(t *testing.T, page string) *ScrapeSource {
	t.Helper()
	srv := scrapeServer(t, page)
	return NewScrapeSource(ScrapeConfig{
		BaseURL: srv.URL + "/search/",
		Window:  DurationWindow{MinSeconds: 480, MaxSeconds: 900},
	}, staticQueries{queries: []string{"calm meditation"}}, 1)
}

func TestScrapeFindPicksSuitableTrack(t *testing.T) {
	src := newScrapeFixture(t, resultsPage)

	cand, err := src.Find(context.Background(), query("calm"), NewExcluded())
	require.NoError(t, err)
	assert.Equal(t, "scrape", cand.SourceID)
	assert.Contains(t, cand.Reference, "/audio/calm-one.mp3")
	assert.Equal(t, float64(630), cand.DurationSeconds)
}

func TestScrapeFindResolvesRelativeLinks(t *testing.T) {
	src := newScrapeFixture(t, resultsPage)

	cand, err := src.Find(context.Background(), query("calm"), NewExcluded())
	require.NoError(t, err)
	assert.True(t, len(cand.Reference) > len("/audio/calm-one.mp3"))
	assert.Contains(t, cand.Reference, "http://")
}

func TestScrapeFindExcludedExhaustsPage(t *testing.T) {
	srv := scrapeServer(t, resultsPage)
	src := NewScrapeSource(ScrapeConfig{
		BaseURL: srv.URL + "/search/",
		Window:  DurationWindow{MinSeconds: 480, MaxSeconds: 900},
	}, staticQueries{queries: []string{"calm meditation"}}, 1)

	cand, err := src.Find(context.Background(), query("calm"), NewExcluded())
	require.NoError(t, err)

	_, err = src.Find(context.Background(), query("calm"), NewExcluded(cand.Reference))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScrapeFindEmptyPage(t *testing.T) {
	src := newScrapeFixture(t, "<html><body>nothing here</body></html>")

	_, err := src.Find(context.Background(), query("calm"), NewExcluded())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExtractLinksPairsNearestDuration(t *testing.T) {
	page := `<span class="duration">10:00</span>
<a href="https://cdn.example.com/a.mp3">A</a>
<span class="duration">2:00</span>
<a href="https://cdn.example.com/b.mp3">B</a>`

	src := NewScrapeSource(ScrapeConfig{
		Window: DurationWindow{MinSeconds: 480, MaxSeconds: 900},
	}, staticQueries{}, 1)

	links := src.extractLinks(page, nil, NewExcluded())
	require.Len(t, links, 1)
	assert.Equal(t, "https://cdn.example.com/a.mp3", links[0].Reference)
	assert.Equal(t, float64(600), links[0].DurationSeconds)
}

func TestExtractLinksSurvivesMarkupVariations(t *testing.T) {
	// Single-quoted attributes, href before class, and nested text nodes
	// must all parse the same as the canonical markup.
	page := `<div class='track'>
<span class='duration track-duration'><b>10:30</b></span>
<a title="Calm one" href='https://cdn.example.com/calm.mp3'>Calm one</a>
<audio src='https://cdn.example.com/calm-stream.mp3'></audio>
</div>`

	src := NewScrapeSource(ScrapeConfig{
		Window: DurationWindow{MinSeconds: 480, MaxSeconds: 900},
	}, staticQueries{}, 1)

	links := src.extractLinks(page, nil, NewExcluded())
	require.Len(t, links, 2)
	assert.Equal(t, "https://cdn.example.com/calm.mp3", links[0].Reference)
	assert.Equal(t, float64(630), links[0].DurationSeconds)
	assert.Equal(t, "https://cdn.example.com/calm-stream.mp3", links[1].Reference)
}

func TestExtractLinksRejectsNonHTTPSchemes(t *testing.T) {
	page := `<span class="duration">10:00</span>
<a href="ftp://example.com/a.mp3">A</a>`

	src := NewScrapeSource(ScrapeConfig{
		Window: DurationWindow{MinSeconds: 480, MaxSeconds: 900},
	}, staticQueries{}, 1)

	assert.Empty(t, src.extractLinks(page, nil, NewExcluded()))
}
