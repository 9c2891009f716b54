package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/calmstack/mantra/internal/api"
	"github.com/calmstack/mantra/internal/api/handlers"
	"github.com/calmstack/mantra/internal/api/middleware"
)

type RouterConfig struct {
	MeditationHandler *handlers.MeditationHandler
	FeedbackHandler   *handlers.FeedbackHandler
	MoodHandler       *handlers.MoodHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.UserID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/moods", cfg.MoodHandler.List)

	r.Route("/meditations", func(r chi.Router) {
		r.Post("/", cfg.MeditationHandler.Retrieve)
		r.Post("/feedback", cfg.FeedbackHandler.Submit)
		r.Get("/feedback/questions", cfg.FeedbackHandler.Questions)
	})

	r.Get("/preferences", cfg.FeedbackHandler.Preferences)

	return r
}
