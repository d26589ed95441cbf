package api

import (
	"net/http"

	"github.com/phrazzld/studyguide-api/internal/api/shared"
)

// HealthHandler reports process liveness.
type HealthHandler struct {
	storeBackend string
}

// NewHealthHandler creates a HealthHandler reporting storeBackend.
func NewHealthHandler(storeBackend string) *HealthHandler {
	return &HealthHandler{storeBackend: storeBackend}
}

// APIHealth handles GET /api/health requests
func (h *HealthHandler) APIHealth(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:  "ok",
		Backend: "go",
		Store:   h.storeBackend,
	})
}

// Health handles GET /health requests with a plain-text body.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
