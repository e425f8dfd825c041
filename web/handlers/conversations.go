package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/engine"
)

func (h *APIHandlers) conversation(w http.ResponseWriter, r *http.Request) (*engine.QueryAssistant, bool) {
	q, ok := h.sessions.Conversation(extractID(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "conversation not found", nil)
	}
	return q, ok
}

// NewConversation handles POST /api/conversations.
func (h *APIHandlers) NewConversation(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusCreated, h.sessions.NewConversation().Snapshot())
}

// GetConversation handles GET /api/conversations/{id}.
func (h *APIHandlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	if q, ok := h.conversation(w, r); ok {
		respondJSON(w, http.StatusOK, q.Snapshot())
	}
}

// Ask handles POST /api/conversations/{id}/messages. Failures to answer are
// part of the conversation (an apology reply plus last_error), so the
// status is 200 whenever the question was accepted.
func (h *APIHandlers) Ask(w http.ResponseWriter, r *http.Request) {
	q, ok := h.conversation(w, r)
	if !ok {
		return
	}
	var req AskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reply, err := q.Ask(r.Context(), req.Question)
	if err != nil {
		h.logger.Warn("question not answered", zap.String("conversation_id", q.ID()), zap.Error(err))
	}
	if reply == nil {
		respondError(w, http.StatusBadRequest, "question is required", nil)
		return
	}
	respondJSON(w, http.StatusOK, AskResponse{Reply: reply, Conversation: q.Snapshot()})
}

// ClearConversation handles DELETE /api/conversations/{id}/messages.
func (h *APIHandlers) ClearConversation(w http.ResponseWriter, r *http.Request) {
	if q, ok := h.conversation(w, r); ok {
		q.ClearChat()
		respondJSON(w, http.StatusOK, q.Snapshot())
	}
}

// ClearConversationError handles DELETE /api/conversations/{id}/error.
func (h *APIHandlers) ClearConversationError(w http.ResponseWriter, r *http.Request) {
	if q, ok := h.conversation(w, r); ok {
		q.ClearError()
		respondJSON(w, http.StatusOK, q.Snapshot())
	}
}

// DeleteConversation handles DELETE /api/conversations/{id}.
func (h *APIHandlers) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.RemoveConversation(extractID(r, "id")) {
		respondError(w, http.StatusNotFound, "conversation not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
