package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/calmstack/mantra/internal/domain"
)

// ArchiveConfig configures the archive.org search-API source.
type ArchiveConfig struct {
	// APIURL is the advancedsearch endpoint.
	APIURL  string
	Window  DurationWindow
	Timeout time.Duration
	Rows    int
}

// ArchiveSource queries the archive.org advanced-search JSON API for audio
// items matching a mood query.
type ArchiveSource struct {
	cfg     ArchiveConfig
	client  *http.Client
	queries QueryProvider
}

// QueryProvider supplies the search-query strings for a mood/language pair.
type QueryProvider interface {
	QueriesFor(mood, language string) []string
}

// NewArchiveSource creates an archive.org source.
func NewArchiveSource(cfg ArchiveConfig, queries QueryProvider) *ArchiveSource {
	if cfg.Rows <= 0 {
		cfg.Rows = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &ArchiveSource{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		queries: queries,
	}
}

func (s *ArchiveSource) ID() string { return "archive" }

type archiveDoc struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Runtime    string `json:"runtime"`
}

type archiveResponse struct {
	Response struct {
		Docs []archiveDoc `json:"docs"`
	} `json:"response"`
}

// Find tries each catalog query against the search API and returns the
// first non-excluded item whose runtime, when present, fits the window.
func (s *ArchiveSource) Find(ctx context.Context, query domain.MoodQuery, excluded Excluded) (*domain.Candidate, error) {
	q := query.Normalized()
	for _, search := range s.queries.QueriesFor(q.Mood, q.Language) {
		docs, err := s.search(ctx, search)
		if err != nil {
			log.Printf("archive: search %q failed: %v", search, err)
			continue
		}
		for _, doc := range docs {
			if doc.Identifier == "" {
				continue
			}
			ref := "https://archive.org/download/" + doc.Identifier
			if excluded.Has(ref) {
				continue
			}
			cand := &domain.Candidate{
				SourceID:  s.ID(),
				Reference: ref,
				Title:     doc.Title,
				RawMetadata: map[string]string{
					"identifier": doc.Identifier,
				},
			}
			if doc.Runtime != "" {
				d, err := ParseDurationText(doc.Runtime)
				if err != nil || !s.cfg.Window.Suitable(d) {
					continue
				}
				cand.DurationSeconds = float64(d.Seconds)
				cand.RawMetadata["runtime"] = doc.Runtime
			}
			return cand, nil
		}
	}
	return nil, ErrNotFound
}

func (s *ArchiveSource) search(ctx context.Context, query string) ([]archiveDoc, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("(%s) AND format:(MP3) AND mediatype:(audio)", query))
	params.Add("fl[]", "identifier")
	params.Add("fl[]", "title")
	params.Add("fl[]", "runtime")
	params.Set("rows", fmt.Sprintf("%d", s.cfg.Rows))
	params.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.APIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var parsed archiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return parsed.Response.Docs, nil
}
