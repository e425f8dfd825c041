package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/scrypster/companion/internal/engine"
)

// capture resolves the {id} session or writes a 404.
func (h *APIHandlers) capture(w http.ResponseWriter, r *http.Request) (*engine.CaptureSession, bool) {
	session, ok := h.sessions.Capture(extractID(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "capture session not found", nil)
	}
	return session, ok
}

// NewCapture handles POST /api/captures.
func (h *APIHandlers) NewCapture(w http.ResponseWriter, r *http.Request) {
	var req NewCaptureRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.sessions.NewCapture(r.Context(), req.PersonID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, session.Snapshot())
}

// GetCapture handles GET /api/captures/{id}.
func (h *APIHandlers) GetCapture(w http.ResponseWriter, r *http.Request) {
	if session, ok := h.capture(w, r); ok {
		respondJSON(w, http.StatusOK, session.Snapshot())
	}
}

// SetCapturePerson handles PUT /api/captures/{id}/person.
func (h *APIHandlers) SetCapturePerson(w http.ResponseWriter, r *http.Request) {
	session, ok := h.capture(w, r)
	if !ok {
		return
	}
	var req CapturePersonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := session.SelectPerson(r.Context(), req.PersonID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session.Snapshot())
}

// SetCaptureText handles PUT /api/captures/{id}/text.
func (h *APIHandlers) SetCaptureText(w http.ResponseWriter, r *http.Request) {
	session, ok := h.capture(w, r)
	if !ok {
		return
	}
	var req CaptureTextRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Append {
		session.AppendText(req.Text)
	} else {
		session.SetText(req.Text)
	}
	respondJSON(w, http.StatusOK, session.Snapshot())
}

// AnalyzeCapture handles POST /api/captures/{id}/analyze. The response is
// always the session snapshot; its state and error tell the outcome.
func (h *APIHandlers) AnalyzeCapture(w http.ResponseWriter, r *http.Request) {
	session, ok := h.capture(w, r)
	if !ok {
		return
	}
	snap, err := session.Analyze(r.Context())
	respondJSON(w, captureStatus(err), snap)
}

// UpdateCaptureAnalysis handles PUT /api/captures/{id}/analysis with the
// user's edits to the analysis under review.
func (h *APIHandlers) UpdateCaptureAnalysis(w http.ResponseWriter, r *http.Request) {
	session, ok := h.capture(w, r)
	if !ok {
		return
	}
	var req CaptureSaveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Analysis == nil {
		respondError(w, http.StatusBadRequest, "analysis is required", nil)
		return
	}
	if err := session.UpdateAnalysis(*req.Analysis); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session.Snapshot())
}

// SaveCapture handles POST /api/captures/{id}/save.
func (h *APIHandlers) SaveCapture(w http.ResponseWriter, r *http.Request) {
	session, ok := h.capture(w, r)
	if !ok {
		return
	}
	var req CaptureSaveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var err error
	if req.Raw {
		_, err = session.SaveRaw(r.Context())
	} else {
		_, err = session.Save(r.Context(), req.Analysis)
	}
	status := captureStatus(err)
	if err == nil {
		status = http.StatusCreated
	}
	respondJSON(w, status, session.Snapshot())
}

// DiscardCapture handles POST /api/captures/{id}/discard.
func (h *APIHandlers) DiscardCapture(w http.ResponseWriter, r *http.Request) {
	if session, ok := h.capture(w, r); ok {
		session.Discard()
		respondJSON(w, http.StatusOK, session.Snapshot())
	}
}

// DeleteCapture handles DELETE /api/captures/{id}.
func (h *APIHandlers) DeleteCapture(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.RemoveCapture(extractID(r, "id")) {
		respondError(w, http.StatusNotFound, "capture session not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// captureStatus maps a capture workflow error to a status code.
func captureStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, context.Canceled):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNoPersonChosen), errors.Is(err, engine.ErrEmptyMemoryText):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotReviewing):
		return http.StatusConflict
	}
	if status := statusFor(err); status != http.StatusInternalServerError {
		return status
	}
	return http.StatusBadGateway
}
