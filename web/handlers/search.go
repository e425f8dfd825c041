package handlers

import (
	"net/http"
	"strings"
)

// Search handles GET /api/search?q=.
func (h *APIHandlers) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondError(w, http.StatusBadRequest, "q is required", nil)
		return
	}
	results, err := h.memories.SearchMemories(r.Context(), q)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, SearchResponse{Query: q, Total: len(results), Results: results})
}
