package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/calmstack/mantra/internal/api"
	"github.com/calmstack/mantra/internal/api/middleware"
	"github.com/calmstack/mantra/internal/domain"
	"github.com/calmstack/mantra/internal/feedback"
)

type FeedbackHandler struct {
	store feedback.Store
}

func NewFeedbackHandler(store feedback.Store) *FeedbackHandler {
	return &FeedbackHandler{store: store}
}

type SubmitFeedbackRequest struct {
	Reference       string  `json:"reference"`
	Mood            string  `json:"mood"`
	SourceID        string  `json:"source_id,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Rating          int     `json:"rating"`
	Comment         string  `json:"comment,omitempty"`
}

func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reference == "" {
		api.Error(w, http.StatusBadRequest, "reference is required")
		return
	}
	if req.Mood == "" {
		api.Error(w, http.StatusBadRequest, "mood is required")
		return
	}

	entry := domain.FeedbackEntry{
		UserID:          middleware.GetUserID(r.Context()),
		Reference:       req.Reference,
		Mood:            req.Mood,
		SourceID:        req.SourceID,
		DurationSeconds: req.DurationSeconds,
		Rating:          req.Rating,
		Comment:         req.Comment,
	}
	if err := h.store.Append(r.Context(), entry); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

type QuestionsResponse struct {
	Questions []string `json:"questions"`
	ShowForm  bool     `json:"show_form"`
}

// Questions returns the feedback questions for a session. The optional
// duration_seconds query parameter adds the length question; the optional
// user ID gates the daily form.
func (h *FeedbackHandler) Questions(w http.ResponseWriter, r *http.Request) {
	var duration float64
	if raw := r.URL.Query().Get("duration_seconds"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			api.Error(w, http.StatusBadRequest, "invalid duration_seconds")
			return
		}
		duration = parsed
	}

	resp := QuestionsResponse{
		Questions: feedback.Questions(duration),
		ShowForm:  true,
	}
	if userID := middleware.GetUserID(r.Context()); userID != "" {
		resp.ShowForm = feedback.ShouldShowForm(r.Context(), h.store, userID)
	}

	api.Success(w, http.StatusOK, resp)
}

// Preferences returns the top rated moods, sources and duration buckets.
func (h *FeedbackHandler) Preferences(w http.ResponseWriter, r *http.Request) {
	limit := 3
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	summary, err := h.store.TopPreferences(r.Context(), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, summary)
}
