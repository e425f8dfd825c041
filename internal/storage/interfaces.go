// Package storage provides composable storage interfaces for Memory Companion.
//
// Persons, memories and embeddings are served by small interfaces that the
// sqlite and postgres backends implement. Callers that need everything take
// a Store.
package storage

import (
	"context"

	"github.com/scrypster/companion/pkg/types"
)

// PersonStore provides CRUD operations for persons.
type PersonStore interface {
	// CreatePerson inserts a new person. The ID must be set.
	CreatePerson(ctx context.Context, person *types.Person) error

	// GetPerson retrieves a person by ID.
	// Returns ErrNotFound if the person doesn't exist.
	GetPerson(ctx context.Context, id string) (*types.Person, error)

	// UpdatePerson replaces the name and photo of an existing person.
	// Returns ErrNotFound if the person doesn't exist.
	UpdatePerson(ctx context.Context, person *types.Person) error

	// DeletePerson removes a person and, through the foreign key, all of
	// their memories. Returns ErrNotFound if the person doesn't exist.
	DeletePerson(ctx context.Context, id string) error

	// ListPersons returns persons ordered by creation time, newest first.
	ListPersons(ctx context.Context, query PersonQuery) ([]types.Person, error)

	// CountPersons returns the number of stored persons.
	CountPersons(ctx context.Context) (int, error)
}

// MemoryStore provides CRUD operations and filtered listing for memories.
type MemoryStore interface {
	// CreateMemory inserts a new memory. The owning person must exist.
	CreateMemory(ctx context.Context, memory *types.Memory) error

	// GetMemory retrieves a memory by ID.
	// Returns ErrNotFound if the memory doesn't exist.
	GetMemory(ctx context.Context, id string) (*types.Memory, error)

	// UpdateMemory replaces every mutable field of an existing memory.
	// Returns ErrNotFound if the memory doesn't exist.
	UpdateMemory(ctx context.Context, memory *types.Memory) error

	// DeleteMemory removes a memory by ID.
	// Returns ErrNotFound if the memory doesn't exist.
	DeleteMemory(ctx context.Context, id string) error

	// DeleteMemoriesForPerson removes every memory of a person and
	// returns how many rows were deleted.
	DeleteMemoriesForPerson(ctx context.Context, personID string) (int, error)

	// ListMemories returns memories ordered by creation time, newest first.
	ListMemories(ctx context.Context, query MemoryQuery) ([]types.Memory, error)

	// CountMemoriesForPerson returns the number of memories of one person.
	CountMemoriesForPerson(ctx context.Context, personID string) (int, error)

	// CountMemoriesByPerson returns memory counts grouped by person ID.
	// Persons without memories are absent from the map.
	CountMemoriesByPerson(ctx context.Context) (map[string]int, error)
}

// EmbeddingStore persists memory embeddings and answers similarity queries.
type EmbeddingStore interface {
	// StoreEmbedding stores (or replaces) the embedding of a memory.
	StoreEmbedding(ctx context.Context, memoryID string, embedding []float32, model string) error

	// GetEmbedding returns the embedding of a memory.
	// Returns ErrNotFound if none is stored.
	GetEmbedding(ctx context.Context, memoryID string) ([]float32, error)

	// NearestMemories returns up to limit memory IDs ordered by cosine
	// similarity to the given vector, most similar first.
	NearestMemories(ctx context.Context, embedding []float32, limit int) ([]ScoredID, error)
}

// SettingsStore persists small key/value user settings.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Store composes every storage concern of a backend.
type Store interface {
	PersonStore
	MemoryStore
	EmbeddingStore
	SettingsStore

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close() error
}
