package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	openai "github.com/sashabaranov/go-openai"

	"github.com/calmstack/mantra/internal/domain"
)

const lookupSystemPrompt = "You suggest publicly available guided meditation audio or video. " +
	"Return a single direct URL plus a title for a meditation matching the requested mood, language and duration."

// LookupAPI is the chat-completion surface the lookup source needs. Tests
// stub it; production uses OpenAIAdapter.
type LookupAPI interface {
	Lookup(ctx context.Context, prompt string) (LookupResult, error)
}

// LookupResult is the structured response requested from the model.
type LookupResult struct {
	URL   string `json:"url" jsonschema:"required,description=Direct URL of the meditation"`
	Title string `json:"title" jsonschema:"required,description=Short human-readable title"`
}

// OpenAIAdapter calls the chat completions API with a JSON-schema response
// format so the reply is machine-parseable.
type OpenAIAdapter struct {
	client *openai.Client
	model  string
	schema *jsonschema.Schema
}

// NewOpenAIAdapter creates an adapter for the given API key and model.
func NewOpenAIAdapter(apiKey, model string) *OpenAIAdapter {
	if model == "" {
		model = openai.GPT4oMini
	}
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	return &OpenAIAdapter{
		client: openai.NewClient(apiKey),
		model:  model,
		schema: reflector.Reflect(LookupResult{}),
	}
}

// Lookup asks the model for a single reference matching the prompt.
func (a *OpenAIAdapter) Lookup(ctx context.Context, prompt string) (LookupResult, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: lookupSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   120,
		Temperature: 0.7,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "meditation_lookup",
				Schema: a.schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return LookupResult{}, err
	}
	if len(resp.Choices) == 0 {
		return LookupResult{}, errors.New("no choices returned")
	}

	var result LookupResult
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &result); err != nil {
		return LookupResult{}, fmt.Errorf("failed to parse model output: %w", err)
	}
	return result, nil
}

// ReachabilityChecker probes whether a reference answers at all. Injected
// so tests do not hit the network.
type ReachabilityChecker func(ctx context.Context, reference string) bool

// DefaultReachabilityChecker issues a HEAD request and accepts any
// non-5xx, non-404 answer.
func DefaultReachabilityChecker(timeout time.Duration) ReachabilityChecker {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context, reference string) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, reference, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode != http.StatusNotFound && resp.StatusCode < 500
	}
}

// LookupConfig configures the LLM lookup source.
type LookupConfig struct {
	// CachePath, when set, persists responses keyed by mood_language.
	CachePath string
	// DurationHint goes into the prompt, e.g. "8-15".
	DurationHint string
	Timeout      time.Duration
}

// LookupSource asks a generative model for a reference and independently
// verifies that the returned URL is well-formed and reachable before
// proposing it. Responses are cached per (mood, language) on disk.
type LookupSource struct {
	api       LookupAPI
	cfg       LookupConfig
	reachable ReachabilityChecker

	mu    sync.Mutex
	cache map[string]LookupResult
}

// NewLookupSource creates an LLM lookup source.
func NewLookupSource(api LookupAPI, reachable ReachabilityChecker, cfg LookupConfig) *LookupSource {
	if cfg.DurationHint == "" {
		cfg.DurationHint = "8-15"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	s := &LookupSource{
		api:       api,
		cfg:       cfg,
		reachable: reachable,
		cache:     map[string]LookupResult{},
	}
	s.loadCache()
	return s
}

func (s *LookupSource) ID() string { return "openai" }

// Find returns a model-suggested reference, preferring the cached answer
// for the query when it is not excluded.
func (s *LookupSource) Find(ctx context.Context, query domain.MoodQuery, excluded Excluded) (*domain.Candidate, error) {
	q := query.Normalized()
	key := q.Mood + "_" + q.Language

	s.mu.Lock()
	cached, ok := s.cache[key]
	s.mu.Unlock()
	if ok && !excluded.Has(cached.URL) {
		return s.candidate(cached), nil
	}

	prompt := fmt.Sprintf("Find a meditation: %s minutes, %s mood, %s language.", s.cfg.DurationHint, q.Mood, q.Language)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	result, err := s.api.Lookup(callCtx, prompt)
	if err != nil {
		log.Printf("openai lookup: %v", err)
		return nil, ErrNotFound
	}

	result.URL = strings.TrimSpace(result.URL)
	if !wellFormedURL(result.URL) {
		log.Printf("openai lookup: model returned malformed URL %q", result.URL)
		return nil, ErrNotFound
	}
	if excluded.Has(result.URL) {
		return nil, ErrNotFound
	}
	if s.reachable != nil && !s.reachable(callCtx, result.URL) {
		log.Printf("openai lookup: reference %s unreachable", result.URL)
		return nil, ErrNotFound
	}

	s.mu.Lock()
	s.cache[key] = result
	s.mu.Unlock()
	s.saveCache()

	return s.candidate(result), nil
}

func (s *LookupSource) candidate(r LookupResult) *domain.Candidate {
	return &domain.Candidate{
		SourceID:  s.ID(),
		Reference: r.URL,
		Title:     r.Title,
	}
}

func wellFormedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (s *LookupSource) loadCache() {
	if s.cfg.CachePath == "" {
		return
	}
	data, err := os.ReadFile(s.cfg.CachePath)
	if err != nil {
		return
	}
	var cache map[string]LookupResult
	if err := json.Unmarshal(data, &cache); err != nil {
		log.Printf("openai lookup: response cache corrupt, starting empty: %v", err)
		return
	}
	s.cache = cache
}

func (s *LookupSource) saveCache() {
	if s.cfg.CachePath == "" {
		return
	}
	s.mu.Lock()
	data, err := json.MarshalIndent(s.cache, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.cfg.CachePath), 0o755); err != nil {
		log.Printf("openai lookup: failed to create cache dir: %v", err)
		return
	}
	if err := os.WriteFile(s.cfg.CachePath, data, 0o644); err != nil {
		log.Printf("openai lookup: failed to save response cache: %v", err)
	}
}
