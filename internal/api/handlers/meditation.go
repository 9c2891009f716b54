package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/calmstack/mantra/internal/api"
	"github.com/calmstack/mantra/internal/api/middleware"
	"github.com/calmstack/mantra/internal/domain"
	"github.com/calmstack/mantra/internal/feedback"
	"github.com/calmstack/mantra/internal/orchestrator"
)

type RetrievalService interface {
	Retrieve(ctx context.Context, query domain.MoodQuery, userID string) (*orchestrator.Result, error)
}

type SessionRecorder interface {
	Create(ctx context.Context, session *domain.Session) error
}

type MeditationHandler struct {
	svc      RetrievalService
	sessions SessionRecorder
	feedback feedback.Store
}

// NewMeditationHandler creates the meditation handler. sessions may be nil
// when no durable history is configured.
func NewMeditationHandler(svc RetrievalService, sessions SessionRecorder, fb feedback.Store) *MeditationHandler {
	return &MeditationHandler{svc: svc, sessions: sessions, feedback: fb}
}

type RetrieveRequest struct {
	Mood     string `json:"mood"`
	Language string `json:"language,omitempty"`
}

type MeditationResponse struct {
	SessionID       string   `json:"session_id,omitempty"`
	Mood            string   `json:"mood"`
	Language        string   `json:"language"`
	Reference       string   `json:"reference"`
	Title           string   `json:"title,omitempty"`
	Source          string   `json:"source"`
	DurationSeconds float64  `json:"duration_seconds,omitempty"`
	FromCache       bool     `json:"from_cache"`
	Fallback        bool     `json:"fallback"`
	Accepted        bool     `json:"accepted"`
	Issues          []string `json:"issues,omitempty"`
	ShowFeedback    bool     `json:"show_feedback_form"`
}

// Retrieve serves one meditation for a mood. The response is always 200
// with a playable reference: exhaustion degrades to the static fallback
// instead of failing.
func (h *MeditationHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Mood == "" {
		api.Error(w, http.StatusBadRequest, "mood is required")
		return
	}

	userID := middleware.GetUserID(r.Context())
	query := domain.MoodQuery{Mood: req.Mood, Language: req.Language}.Normalized()

	result, err := h.svc.Retrieve(r.Context(), query, userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := MeditationResponse{
		Mood:            query.Mood,
		Language:        query.Language,
		Reference:       result.Candidate.Reference,
		Title:           result.Candidate.Title,
		Source:          result.Source,
		DurationSeconds: result.Candidate.DurationSeconds,
		FromCache:       result.FromCache,
		Fallback:        result.Fallback,
		Accepted:        result.Accepted,
		Issues:          result.Report.Issues,
	}
	if d, ok := result.Report.Measurements["duration_seconds"]; ok {
		resp.DurationSeconds = d
	}

	if h.sessions != nil {
		session := &domain.Session{
			UserID:    userID,
			Mood:      query.Mood,
			Language:  query.Language,
			Reference: result.Candidate.Reference,
			Title:     result.Candidate.Title,
			SourceID:  result.Source,
		}
		if err := h.sessions.Create(r.Context(), session); err != nil {
			log.Printf("meditation: failed to record session: %v", err)
		} else {
			resp.SessionID = session.ID
		}
	}

	if h.feedback != nil && userID != "" {
		resp.ShowFeedback = feedback.ShouldShowForm(r.Context(), h.feedback, userID)
	}

	api.Success(w, http.StatusOK, resp)
}
