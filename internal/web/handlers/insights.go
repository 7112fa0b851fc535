package handlers

import (
	"net/http"
)

type insightsRequest struct {
	UserQuery *string `json:"user_query"`
}

// Insights handles POST /insights/
func (h *Handlers) Insights(w http.ResponseWriter, r *http.Request) {
	var req insightsRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	text, err := h.insights.Insights(r.Context(), deref(req.UserQuery))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"insights": text})
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": h.version.Version,
	})
}
