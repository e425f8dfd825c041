package handlers

import (
	"net/http"

	"github.com/scrypster/companion/internal/config"
	"github.com/scrypster/companion/pkg/types"
)

// GetUserConfig handles GET /api/config/user.
func (h *APIHandlers) GetUserConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.settings.Get())
}

// PostUserConfig handles POST /api/config/user and persists the settings.
func (h *APIHandlers) PostUserConfig(w http.ResponseWriter, r *http.Request) {
	var req UserConfigRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.settings.Update(r.Context(), config.UserConfig{
		DisplayName: req.DisplayName,
		DefaultSort: types.PersonSort(req.DefaultSort),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}
