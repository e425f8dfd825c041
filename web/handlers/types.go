package handlers

import (
	"github.com/scrypster/companion/internal/engine"
	"github.com/scrypster/companion/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// CreatePersonRequest is the body of POST /api/persons.
type CreatePersonRequest struct {
	Name     string  `json:"name" validate:"required,max=200"`
	PhotoURI *string `json:"photo_uri,omitempty" validate:"omitempty,max=2048"`
}

// UpdatePersonRequest is the body of PATCH /api/persons/{id}. Absent fields
// are left unchanged; an empty photo_uri removes the photo.
type UpdatePersonRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=200"`
	PhotoURI *string `json:"photo_uri,omitempty" validate:"omitempty,max=2048"`
}

// CreateMemoryRequest is the body of POST /api/memories. Without an
// analysis the memory is stored unprocessed and queued for enrichment.
type CreateMemoryRequest struct {
	PersonID string          `json:"person_id" validate:"required"`
	RawInput string          `json:"raw_input" validate:"required,max=20000"`
	Analysis *types.Analysis `json:"analysis,omitempty"`
}

// UpdateMemoryRequest is the body of PATCH /api/memories/{id}.
type UpdateMemoryRequest struct {
	RawInput *string         `json:"raw_input,omitempty" validate:"omitempty,max=20000"`
	Analysis *types.Analysis `json:"analysis,omitempty"`
}

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	Text string `json:"text" validate:"required,max=20000"`
}

// NewCaptureRequest is the body of POST /api/captures.
type NewCaptureRequest struct {
	PersonID string `json:"person_id,omitempty"`
}

// CapturePersonRequest is the body of PUT /api/captures/{id}/person.
type CapturePersonRequest struct {
	PersonID string `json:"person_id" validate:"required"`
}

// CaptureTextRequest is the body of PUT /api/captures/{id}/text. With
// append set the text is added to the draft instead of replacing it.
type CaptureTextRequest struct {
	Text   string `json:"text" validate:"max=20000"`
	Append bool   `json:"append,omitempty"`
}

// CaptureSaveRequest is the body of POST /api/captures/{id}/save. Raw saves
// the draft unanalyzed; otherwise Analysis, or the one under review, is
// applied.
type CaptureSaveRequest struct {
	Raw      bool            `json:"raw,omitempty"`
	Analysis *types.Analysis `json:"analysis,omitempty"`
}

// AskRequest is the body of POST /api/conversations/{id}/messages.
type AskRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

// AskResponse carries the reply and the updated conversation.
type AskResponse struct {
	Reply        *types.ChatMessage          `json:"reply,omitempty"`
	Conversation engine.ConversationSnapshot `json:"conversation"`
}

// ImportRequest is the body of POST /api/import.
type ImportRequest struct {
	Path string `json:"path" validate:"required"`
}

// UserConfigRequest is the body of POST /api/config/user.
type UserConfigRequest struct {
	DisplayName string `json:"display_name" validate:"max=100"`
	DefaultSort string `json:"default_sort,omitempty" validate:"omitempty,oneof=latest alphabetical most_memories LATEST ALPHABETICAL MOST_MEMORIES"`
}

// SearchResponse is the response format for GET /api/search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Total   int            `json:"total"`
	Results []types.Memory `json:"results"`
}

// StatsResponse is the response format for GET /api/stats.
type StatsResponse struct {
	Persons     int `json:"persons"`
	Memories    int `json:"memories"`
	Processed   int `json:"processed"`
	Unprocessed int `json:"unprocessed"`
	QueueSize   int `json:"queue_size"`
}
