package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/engine"
	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/pkg/types"
)

// ListMemories handles GET /api/memories?person_id=&processed=&q=&limit=.
func (h *APIHandlers) ListMemories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := storage.MemoryQuery{
		PersonID: q.Get("person_id"),
		Search:   q.Get("q"),
		Limit:    parseInt(q.Get("limit"), 0),
	}
	if raw := q.Get("processed"); raw != "" {
		processed, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "processed must be true or false", nil)
			return
		}
		query.Processed = storage.Bool(processed)
	}

	memories, err := h.memories.QueryMemories(r.Context(), query)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, memories)
}

// CreateMemory handles POST /api/memories. A memory posted with a usable
// analysis is stored processed; otherwise it is stored raw and queued.
func (h *APIHandlers) CreateMemory(w http.ResponseWriter, r *http.Request) {
	var req CreateMemoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()

	if req.Analysis == nil || req.Analysis.IsEmpty() {
		memory, err := h.memories.SaveUnprocessed(ctx, req.PersonID, req.RawInput)
		if err != nil {
			h.respondServiceError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, memory)
		return
	}

	if _, err := h.persons.GetPerson(ctx, req.PersonID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	memory := types.NewUnprocessedMemory(req.PersonID, req.RawInput).WithAnalysis(*req.Analysis)
	if err := h.memories.ImportMemory(ctx, memory); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, memory)
}

// GetMemory handles GET /api/memories/{id}.
func (h *APIHandlers) GetMemory(w http.ResponseWriter, r *http.Request) {
	memory, err := h.memories.GetMemory(r.Context(), extractID(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, memory)
}

// UpdateMemory handles PATCH /api/memories/{id}. Editing the text keeps the
// existing analysis unless a new one is supplied.
func (h *APIHandlers) UpdateMemory(w http.ResponseWriter, r *http.Request) {
	var req UpdateMemoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()

	memory, err := h.memories.GetMemory(ctx, extractID(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if req.RawInput != nil {
		memory.RawInput = strings.TrimSpace(*req.RawInput)
	}
	if req.Analysis != nil {
		memory = memory.WithAnalysis(*req.Analysis)
	}

	if err := h.memories.UpdateMemory(ctx, memory); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, memory)
}

// DeleteMemory handles DELETE /api/memories/{id}.
func (h *APIHandlers) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	if err := h.directory.DeleteMemory(r.Context(), extractID(r, "id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReanalyzeMemory handles POST /api/memories/{id}/analyze: it runs the AI
// analysis again and applies the result.
func (h *APIHandlers) ReanalyzeMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	memory, err := h.memories.GetMemory(ctx, extractID(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	analysis, err := h.analyzer.Analyze(ctx, memory.RawInput)
	if err != nil {
		h.logger.Warn("reanalysis failed", zap.String("memory_id", memory.ID), zap.Error(err))
		respondError(w, http.StatusBadGateway, engine.FriendlyError(err), nil)
		return
	}
	if analysis.IsEmpty() {
		respondError(w, http.StatusUnprocessableEntity, "AI returned no usable analysis", nil)
		return
	}

	updated, err := h.memories.ApplyAnalysis(ctx, memory.ID, analysis)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// Analyze handles POST /api/analyze. The analysis is returned for review
// and nothing is stored.
func (h *APIHandlers) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		respondError(w, http.StatusBadRequest, engine.ErrEmptyMemoryText.Error(), nil)
		return
	}

	analysis, err := h.analyzer.Analyze(r.Context(), text)
	if err != nil {
		h.logger.Warn("analysis failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, engine.FriendlyError(err), nil)
		return
	}
	analysis.Normalize()
	respondJSON(w, http.StatusOK, analysis)
}
