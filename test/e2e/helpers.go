//go:build e2e

package e2e

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/calmstack/mantra/internal/api/handlers"
	"github.com/calmstack/mantra/internal/cache"
	"github.com/calmstack/mantra/internal/catalog"
	"github.com/calmstack/mantra/internal/feedback"
	"github.com/calmstack/mantra/internal/fetch"
	"github.com/calmstack/mantra/internal/orchestrator"
	"github.com/calmstack/mantra/internal/server"
	"github.com/calmstack/mantra/internal/source"
	"github.com/calmstack/mantra/internal/validate"
)

// E2EEnv is a fully wired file-backed deployment: real router, real
// orchestrator, real fetcher and validator, with an in-process HTTP server
// standing in for the remote audio host.
type E2EEnv struct {
	T          *testing.T
	Server     *httptest.Server
	AudioURL   string
	Fallback   string
	HTTPClient *http.Client
}

// durationWindow is the seconds-scale suitability window used by the test
// fixtures: the validator logic is identical at any scale, and 10-second
// WAVs keep the suite fast.
var durationWindow = source.DurationWindow{MinSeconds: 5, MaxSeconds: 15}

func testValidatorConfig() validate.Config {
	return validate.Config{
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
	}
}

// makeWAV builds a mono 16-bit PCM file with the given number of loud
// seconds at -12 dBFS.
func makeWAV(sampleRate, seconds int) []byte {
	samples := sampleRate * seconds
	dataLen := samples * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
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
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))

	sign := int16(8192)
	for i := 0; i < samples; i++ {
		binary.Write(&buf, binary.LittleEndian, sign)
		sign = -sign
	}
	return buf.Bytes()
}

// SetupE2EEnv wires the whole service around an audio host serving one
// valid 10-second track. With curated false the catalog offers nothing but
// the fallback.
func SetupE2EEnv(t *testing.T, curated bool) *E2EEnv {
	t.Helper()

	wav := makeWAV(8000, 10)
	audioSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(wav)
	}))
	t.Cleanup(audioSrv.Close)

	audioURL := audioSrv.URL + "/calm.wav"
	fallbackURL := audioSrv.URL + "/fallback.wav"

	catalogYAML := fmt.Sprintf(`
moods:
  calm:
    queries: ["calm meditation"]
    fallback: %q
default_queries: ["guided meditation"]
default_fallback: %q
`, fallbackURL, fallbackURL)
	if curated {
		catalogYAML = fmt.Sprintf(`
moods:
  calm:
    queries: ["calm meditation"]
    fallback: %q
    curated:
      - reference: %q
        title: "Calm ten seconds"
        duration_seconds: 10
default_queries: ["guided meditation"]
default_fallback: %q
`, fallbackURL, audioURL, fallbackURL)
	}

	cat, err := catalog.Load([]byte(catalogYAML))
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}

	dataDir := t.TempDir()
	store := cache.NewFileCache(dataDir + "/fetch_cache.json")
	fetcher := fetch.NewHTTPFetcher(dataDir+"/artifacts", 5*time.Second)
	validator := validate.New(testValidatorConfig())
	fbStore := feedback.NewFileStore(dataDir + "/feedback.json")

	sources := []source.Client{source.NewCuratedSource(cat, durationWindow, 1)}

	orch, err := orchestrator.New(orchestrator.Config{
		SourceAttempts: 3,
		AttemptBudget:  5,
		RecentLimit:    5,
		FetchTimeout:   5 * time.Second,
	}, sources, fetcher, validator, store, cat)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	router := server.NewRouter(server.RouterConfig{
		MeditationHandler: handlers.NewMeditationHandler(orch, nil, fbStore),
		FeedbackHandler:   handlers.NewFeedbackHandler(fbStore),
		MoodHandler:       handlers.NewMoodHandler(cat),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &E2EEnv{
		T:          t,
		Server:     srv,
		AudioURL:   audioURL,
		Fallback:   fallbackURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Envelope is the standard response wrapper.
type Envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func (e *E2EEnv) Post(path string, body interface{}, userID string) (*Envelope, int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequest(http.MethodPost, e.Server.URL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	return e.do(req)
}

func (e *E2EEnv) Get(path, userID string) (*Envelope, int, error) {
	req, err := http.NewRequest(http.MethodGet, e.Server.URL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	return e.do(req)
}

func (e *E2EEnv) do(req *http.Request) (*Envelope, int, error) {
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("non-JSON response %q: %w", raw, err)
	}
	return &env, resp.StatusCode, nil
}
