package types

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEmptyContent is returned when a memory has no raw input.
	ErrEmptyContent = errors.New("Memory content cannot be empty")

	// ErrMissingPerson is returned when a memory is not attached to a person.
	ErrMissingPerson = errors.New("memory person ID is required")
)

// Memory is a user-authored note about a Person, optionally enriched with
// AI-derived structured fields.
type Memory struct {
	ID       string `json:"id"`
	PersonID string `json:"person_id"`
	RawInput string `json:"raw_input"` // Text as entered by the user (trimmed)

	// AI-derived fields, populated once the memory is processed
	AISummary     string   `json:"ai_summary"`
	Topic         string   `json:"topic"`
	Emotion       *string  `json:"emotion,omitempty"`
	TimeReference *string  `json:"time_reference,omitempty"`
	ActionItems   []string `json:"action_items"`
	KeyDetails    []string `json:"key_details"`

	CreatedAt   time.Time `json:"created_at"`
	IsProcessed bool      `json:"is_processed"`
}

// NewUnprocessedMemory builds a memory that has not been analyzed yet.
func NewUnprocessedMemory(personID, rawInput string) *Memory {
	return &Memory{
		ID:          uuid.New().String(),
		PersonID:    strings.TrimSpace(personID),
		RawInput:    strings.TrimSpace(rawInput),
		ActionItems: []string{},
		KeyDetails:  []string{},
		CreatedAt:   time.Now().UTC(),
	}
}

// Validate checks the required fields of a memory.
func (m *Memory) Validate() error {
	if strings.TrimSpace(m.RawInput) == "" {
		return ErrEmptyContent
	}
	if strings.TrimSpace(m.PersonID) == "" {
		return ErrMissingPerson
	}
	return nil
}

// WithAnalysis returns a copy of m with the analysis fields applied and
// IsProcessed set. The receiver is not modified.
func (m Memory) WithAnalysis(a Analysis) *Memory {
	a.Normalize()
	m.AISummary = a.Summary
	m.Topic = a.Topic
	m.Emotion = a.Emotion
	m.TimeReference = a.TimeReference
	m.ActionItems = append([]string{}, a.ActionItems...)
	m.KeyDetails = append([]string{}, a.KeyDetails...)
	m.IsProcessed = true
	return &m
}

// Analysis returns the AI-derived fields of the memory as an Analysis.
func (m *Memory) Analysis() Analysis {
	return Analysis{
		Topic:         m.Topic,
		Emotion:       m.Emotion,
		TimeReference: m.TimeReference,
		ActionItems:   append([]string{}, m.ActionItems...),
		KeyDetails:    append([]string{}, m.KeyDetails...),
		Summary:       m.AISummary,
	}
}

// SearchText is the lowercase text used for keyword matching:
// raw input, summary and topic joined by spaces.
func (m *Memory) SearchText() string {
	return strings.ToLower(m.RawInput + " " + m.AISummary + " " + m.Topic)
}
