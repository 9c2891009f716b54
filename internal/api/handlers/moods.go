package handlers

import (
	"net/http"

	"github.com/calmstack/mantra/internal/api"
	"github.com/calmstack/mantra/internal/catalog"
)

type MoodHandler struct {
	catalog *catalog.Catalog
}

func NewMoodHandler(cat *catalog.Catalog) *MoodHandler {
	return &MoodHandler{catalog: cat}
}

type MoodsResponse struct {
	Moods []string `json:"moods"`
}

// List returns the moods the catalog knows. Unknown moods are still
// served via the default query pool; this list is what a client should
// offer in its picker.
func (h *MoodHandler) List(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, MoodsResponse{Moods: h.catalog.MoodNames()})
}
