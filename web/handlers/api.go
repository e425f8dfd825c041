// Package handlers provides the HTTP handlers and middleware of the Memory
// Companion API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/engine"
	"github.com/scrypster/companion/internal/services"
	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/pkg/types"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// QueueSizeGetter reports the enrichment backlog.
type QueueSizeGetter interface {
	QueueLength() int
}

// Deps are the services behind the API. Settings and Queue are optional.
type Deps struct {
	Persons   *engine.PersonService
	Memories  *engine.MemoryService
	Directory *engine.Directory
	Sessions  *engine.SessionRegistry
	Analyzer  engine.Analyzer
	Settings  *services.SettingsService
	Queue     QueueSizeGetter
	Logger    *zap.Logger
}

// APIHandlers contains HTTP handlers for the REST API.
type APIHandlers struct {
	persons   *engine.PersonService
	memories  *engine.MemoryService
	directory *engine.Directory
	sessions  *engine.SessionRegistry
	analyzer  engine.Analyzer
	settings  *services.SettingsService
	queue     QueueSizeGetter
	logger    *zap.Logger
}

// NewAPIHandlers creates the API handlers.
func NewAPIHandlers(d Deps) *APIHandlers {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandlers{
		persons:   d.Persons,
		memories:  d.Memories,
		directory: d.Directory,
		sessions:  d.Sessions,
		analyzer:  d.Analyzer,
		settings:  d.Settings,
		queue:     d.Queue,
		logger:    logger.Named("api"),
	}
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// decodeJSON reads a JSON body into dst and validates it. It writes the
// error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return false
	}
	if err := validateRequest(dst); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return false
	}
	return true
}

// extractID returns a chi URL parameter.
func extractID(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// parseInt parses an integer from a string, returning defaultValue if parsing fails.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Headers are already sent, so an encoding failure cannot be reported.
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}
	respondJSON(w, statusCode, errResp)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrPersonNotFound),
		errors.Is(err, engine.ErrMemoryNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrEmptyName),
		errors.Is(err, types.ErrEmptyContent),
		errors.Is(err, types.ErrMissingPerson),
		errors.Is(err, engine.ErrInvalidPerson),
		errors.Is(err, engine.ErrInvalidMemory),
		errors.Is(err, engine.ErrNoPersonChosen),
		errors.Is(err, engine.ErrEmptyMemoryText),
		errors.Is(err, services.ErrInvalidSettings),
		errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotReviewing):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes err using its repository message. The cause
// goes into the details of server errors only.
func (h *APIHandlers) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		respondError(w, status, err.Error(), nil)
		return
	}
	h.logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))

	cause := engine.Cause(err)
	if cause != nil && cause.Error() == err.Error() {
		cause = nil
	}
	respondError(w, status, err.Error(), cause)
}
