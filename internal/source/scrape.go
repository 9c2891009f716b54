package source

import (
	"context"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/calmstack/mantra/internal/domain"
)

const scrapeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// pageBodyLimit caps how much of a results page is read.
const pageBodyLimit = 4 << 20

// ScrapeConfig configures the scraped-search-page source.
type ScrapeConfig struct {
	// BaseURL is the search endpoint; the query is appended URL-encoded.
	BaseURL string
	Window  DurationWindow
	Timeout time.Duration
}

// ScrapeSource extracts audio links from a search results page, pairing
// each link with the nearest preceding duration marker so only tracks of a
// suitable length are proposed.
type ScrapeSource struct {
	cfg     ScrapeConfig
	client  *http.Client
	queries QueryProvider

	mu  sync.Mutex
	rng *rand.Rand
}

// NewScrapeSource creates a scrape source.
func NewScrapeSource(cfg ScrapeConfig, queries QueryProvider, seed int64) *ScrapeSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &ScrapeSource{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		queries: queries,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (s *ScrapeSource) ID() string { return "scrape" }

// Find fetches the results page for each catalog query and returns a random
// suitable, non-excluded audio link.
func (s *ScrapeSource) Find(ctx context.Context, query domain.MoodQuery, excluded Excluded) (*domain.Candidate, error) {
	q := query.Normalized()
	for _, search := range s.queries.QueriesFor(q.Mood, q.Language) {
		page, pageURL, err := s.fetchPage(ctx, search)
		if err != nil {
			log.Printf("scrape: query %q failed: %v", search, err)
			continue
		}

		links := s.extractLinks(page, pageURL, excluded)
		if len(links) == 0 {
			continue
		}

		s.mu.Lock()
		pick := links[s.rng.Intn(len(links))]
		s.mu.Unlock()
		return &pick, nil
	}
	return nil, ErrNotFound
}

func (s *ScrapeSource) fetchPage(ctx context.Context, query string) (string, *url.URL, error) {
	searchURL := s.cfg.BaseURL + url.PathEscape(strings.ReplaceAll(query, " ", "+")) + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("User-Agent", scrapeUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, pageBodyLimit))
	if err != nil {
		return "", nil, err
	}
	return string(body), resp.Request.URL, nil
}

// extractLinks walks the parsed page in document order, pairing every mp3
// link with the nearest duration marker that precedes it, and keeps only
// suitable, non-excluded links.
func (s *ScrapeSource) extractLinks(page string, pageURL *url.URL, excluded Excluded) []domain.Candidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		log.Printf("scrape: failed to parse page: %v", err)
		return nil
	}

	var out []domain.Candidate
	lastMarker := ""
	doc.Find("[class*=duration], a[href], audio[src], source[src]").Each(func(_ int, sel *goquery.Selection) {
		if strings.Contains(sel.AttrOr("class", ""), "duration") {
			lastMarker = strings.TrimSpace(sel.Text())
			return
		}

		raw, ok := sel.Attr("href")
		if !ok {
			raw, ok = sel.Attr("src")
		}
		if !ok || !strings.Contains(raw, ".mp3") || lastMarker == "" {
			return
		}
		d, err := ParseDurationText(lastMarker)
		if err != nil || !s.cfg.Window.Suitable(d) {
			return
		}

		ref := resolveRef(pageURL, raw)
		if ref == "" || excluded.Has(ref) {
			return
		}
		out = append(out, domain.Candidate{
			SourceID:        s.ID(),
			Reference:       ref,
			DurationSeconds: float64(d.Seconds),
		})
	})
	return out
}

func resolveRef(base *url.URL, raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
