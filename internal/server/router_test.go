package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/calmstack/mantra/internal/api/handlers"
	"github.com/calmstack/mantra/internal/catalog"
	"github.com/calmstack/mantra/internal/domain"
	"github.com/calmstack/mantra/internal/orchestrator"
)

type MockRetrievalService struct {
	mock.Mock
}

func (m *MockRetrievalService) Retrieve(ctx context.Context, query domain.MoodQuery, userID string) (*orchestrator.Result, error) {
	args := m.Called(ctx, query, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orchestrator.Result), args.Error(1)
}

type MockFeedbackStore struct {
	mock.Mock
}

func (m *MockFeedbackStore) Append(ctx context.Context, entry domain.FeedbackEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockFeedbackStore) TopPreferences(ctx context.Context, n int) (domain.PreferenceSummary, error) {
	args := m.Called(ctx, n)
	return args.Get(0).(domain.PreferenceSummary), args.Error(1)
}

func (m *MockFeedbackStore) LastFeedbackAt(ctx context.Context, userID string) (time.Time, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(time.Time), args.Error(1)
}

func newTestRouter(svc *MockRetrievalService, store *MockFeedbackStore) http.Handler {
	return NewRouter(RouterConfig{
		MeditationHandler: handlers.NewMeditationHandler(svc, nil, store),
		FeedbackHandler:   handlers.NewFeedbackHandler(store),
		MoodHandler:       handlers.NewMoodHandler(catalog.Default()),
	})
}

func TestRouterHealth(t *testing.T) {
	router := newTestRouter(new(MockRetrievalService), new(MockFeedbackStore))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouterMoods(t *testing.T) {
	router := newTestRouter(new(MockRetrievalService), new(MockFeedbackStore))

	req := httptest.NewRequest(http.MethodGet, "/moods", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterRetrieveCarriesUserHeader(t *testing.T) {
	svc := new(MockRetrievalService)
	store := new(MockFeedbackStore)
	router := newTestRouter(svc, store)

	svc.On("Retrieve", mock.Anything, domain.MoodQuery{Mood: "calm", Language: "english"}, "user-123").
		Return(&orchestrator.Result{
			Accepted: true,
			Candidate: domain.Candidate{
				SourceID:  "curated",
				Reference: "https://example.com/calm.mp3",
			},
			Source: "curated",
		}, nil)
	store.On("LastFeedbackAt", mock.Anything, "user-123").Return(time.Time{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/meditations", bytes.NewReader([]byte(`{"mood":"calm"}`)))
	req.Header.Set("X-User-ID", "user-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestRouterRejectsOversizedBody(t *testing.T) {
	router := newTestRouter(new(MockRetrievalService), new(MockFeedbackStore))

	big := bytes.Repeat([]byte("a"), 2*1024*1024)
	req := httptest.NewRequest(http.MethodPost, "/meditations", bytes.NewReader(big))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestRouterUnknownRoute(t *testing.T) {
	router := newTestRouter(new(MockRetrievalService), new(MockFeedbackStore))

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
