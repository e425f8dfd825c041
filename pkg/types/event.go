package types

import "time"

// EventType names a change to persons or memories.
type EventType string

const (
	EventPersonCreated   EventType = "person.created"
	EventPersonUpdated   EventType = "person.updated"
	EventPersonDeleted   EventType = "person.deleted"
	EventMemoryCreated   EventType = "memory.created"
	EventMemoryUpdated   EventType = "memory.updated"
	EventMemoryProcessed EventType = "memory.processed"
	EventMemoryDeleted   EventType = "memory.deleted"
)

// Event is broadcast to live clients whenever stored data changes.
type Event struct {
	Type     EventType `json:"type"`
	PersonID string    `json:"person_id,omitempty"`
	MemoryID string    `json:"memory_id,omitempty"`
	Time     time.Time `json:"time"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType EventType, personID, memoryID string) Event {
	return Event{
		Type:     eventType,
		PersonID: personID,
		MemoryID: memoryID,
		Time:     time.Now().UTC(),
	}
}
