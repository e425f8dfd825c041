package types

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one entry of a query conversation.
type ChatMessage struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	IsUser         bool      `json:"is_user"`
	SourceMemories []Memory  `json:"source_memories,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewUserMessage builds a message authored by the user.
func NewUserMessage(text string) ChatMessage {
	return ChatMessage{
		ID:        uuid.New().String(),
		Text:      text,
		IsUser:    true,
		CreatedAt: time.Now().UTC(),
	}
}

// NewAssistantMessage builds a reply with the memories it was drawn from.
func NewAssistantMessage(text string, sources []Memory) ChatMessage {
	return ChatMessage{
		ID:             uuid.New().String(),
		Text:           text,
		SourceMemories: sources,
		CreatedAt:      time.Now().UTC(),
	}
}
