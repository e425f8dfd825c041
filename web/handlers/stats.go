package handlers

import (
	"net/http"
)

// GetStats handles GET /api/stats.
func (h *APIHandlers) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	persons, err := h.persons.CountPersons(ctx)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	processed, err := h.memories.ProcessedMemories(ctx)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	unprocessed, err := h.memories.UnprocessedMemories(ctx)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	resp := StatsResponse{
		Persons:     persons,
		Memories:    len(processed) + len(unprocessed),
		Processed:   len(processed),
		Unprocessed: len(unprocessed),
	}
	if h.queue != nil {
		resp.QueueSize = h.queue.QueueLength()
	}
	respondJSON(w, http.StatusOK, resp)
}
