package handlers

import (
	"net/http"
	"strings"

	"github.com/scrypster/companion/internal/engine"
	"github.com/scrypster/companion/pkg/types"
)

// ListPersons handles GET /api/persons?sort=&q=. The view carries its own
// error state, so failures are reported in the body with status 200.
func (h *APIHandlers) ListPersons(w http.ResponseWriter, r *http.Request) {
	sort := r.URL.Query().Get("sort")
	order := types.ParsePersonSort(sort)
	if sort == "" && h.settings != nil {
		order = h.settings.Get().DefaultSort
	}
	respondJSON(w, http.StatusOK, h.directory.ListPersons(r.Context(), order, r.URL.Query().Get("q")))
}

// CreatePerson handles POST /api/persons.
func (h *APIHandlers) CreatePerson(w http.ResponseWriter, r *http.Request) {
	var req CreatePersonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	person, err := h.persons.CreatePerson(r.Context(), req.Name, req.PhotoURI)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, person)
}

// GetPerson handles GET /api/persons/{id}.
func (h *APIHandlers) GetPerson(w http.ResponseWriter, r *http.Request) {
	view := h.directory.PersonDetail(r.Context(), extractID(r, "id"))
	status := http.StatusOK
	if view.State == types.ViewError && view.Person == nil {
		status = http.StatusNotFound
		if view.Error != engine.ErrPersonNotFound.Error() {
			status = http.StatusInternalServerError
		}
	}
	respondJSON(w, status, view)
}

// UpdatePerson handles PATCH /api/persons/{id}.
func (h *APIHandlers) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	var req UpdatePersonRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	person, err := h.persons.GetPerson(r.Context(), extractID(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if req.Name != nil {
		person.Name = strings.TrimSpace(*req.Name)
	}
	if req.PhotoURI != nil {
		person.PhotoURI = types.StringPtr(*req.PhotoURI)
	}

	if err := h.persons.UpdatePerson(r.Context(), person); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, person)
}

// DeletePerson handles DELETE /api/persons/{id}. The person's memories go
// with them.
func (h *APIHandlers) DeletePerson(w http.ResponseWriter, r *http.Request) {
	if err := h.directory.DeletePerson(r.Context(), extractID(r, "id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
