package types

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyName is returned when a person is created or updated with a blank name.
var ErrEmptyName = errors.New("Name cannot be empty")

// Person is the subject a Memory is attached to.
type Person struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PhotoURI  *string   `json:"photo_uri,omitempty"` // Optional photo reference (path or URL)
	CreatedAt time.Time `json:"created_at"`
}

// NewPerson builds a Person with a fresh ID. The name is trimmed; a blank
// photo reference is dropped.
func NewPerson(name string, photoURI *string) *Person {
	return &Person{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		PhotoURI:  trimOptional(photoURI),
		CreatedAt: time.Now().UTC(),
	}
}

// Validate reports ErrEmptyName when the name is blank.
func (p *Person) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// trimOptional trims an optional string and maps blank values to nil.
func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}
