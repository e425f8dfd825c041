package engine

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/pkg/types"
)

// Enqueuer schedules a memory for background enrichment.
type Enqueuer interface {
	Enqueue(memoryID string) bool
}

// MemoryService exposes memory operations with user-facing errors and
// change events.
type MemoryService struct {
	store    storage.Store
	notifier Notifier
	logger   *zap.Logger
	queue    Enqueuer
}

// NewMemoryService wraps a store. A nil notifier or logger is replaced by a
// no-op.
func NewMemoryService(store storage.Store, notifier Notifier, logger *zap.Logger) *MemoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryService{store: store, notifier: notifierOrNop(notifier), logger: logger}
}

// SetEnqueuer sets the queue used by SaveUnprocessed and ImportMemory.
// Must be called before the service is shared between goroutines.
func (s *MemoryService) SetEnqueuer(q Enqueuer) {
	s.queue = q
}

// Store returns the underlying store.
func (s *MemoryService) Store() storage.Store {
	return s.store
}

// ListMemories returns every memory, newest first.
func (s *MemoryService) ListMemories(ctx context.Context) ([]types.Memory, error) {
	return s.list(ctx, storage.MemoryQuery{}, ErrLoadMemories)
}

// MemoriesForPerson returns the memories of one person, newest first.
func (s *MemoryService) MemoriesForPerson(ctx context.Context, personID string) ([]types.Memory, error) {
	return s.list(ctx, storage.MemoryQuery{PersonID: personID}, ErrLoadMemories)
}

// ProcessedMemories returns the memories that carry analysis fields.
func (s *MemoryService) ProcessedMemories(ctx context.Context) ([]types.Memory, error) {
	return s.list(ctx, storage.MemoryQuery{Processed: storage.Bool(true)}, ErrLoadMemories)
}

// UnprocessedMemories returns the memories still waiting for analysis.
func (s *MemoryService) UnprocessedMemories(ctx context.Context) ([]types.Memory, error) {
	return s.list(ctx, storage.MemoryQuery{Processed: storage.Bool(false)}, ErrLoadMemories)
}

// SearchMemories returns memories whose raw input, summary or topic contains
// query.
func (s *MemoryService) SearchMemories(ctx context.Context, query string) ([]types.Memory, error) {
	return s.list(ctx, storage.MemoryQuery{Search: strings.TrimSpace(query)}, ErrSearchMemories)
}

// QueryMemories lists memories with an arbitrary filter.
func (s *MemoryService) QueryMemories(ctx context.Context, query storage.MemoryQuery) ([]types.Memory, error) {
	return s.list(ctx, query, ErrLoadMemories)
}

func (s *MemoryService) list(ctx context.Context, query storage.MemoryQuery, msg error) ([]types.Memory, error) {
	memories, err := s.store.ListMemories(ctx, query)
	if err != nil {
		s.logger.Error("list memories failed",
			zap.String("person_id", query.PersonID),
			zap.String("search", query.Search),
			zap.Error(err))
		return nil, fail(msg, err)
	}
	return memories, nil
}

// GetMemory loads one memory. A missing memory yields ErrMemoryNotFound.
func (s *MemoryService) GetMemory(ctx context.Context, id string) (*types.Memory, error) {
	memory, err := s.store.GetMemory(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fail(ErrMemoryNotFound, err)
	}
	if err != nil {
		s.logger.Error("get memory failed", zap.String("memory_id", id), zap.Error(err))
		return nil, fail(ErrLoadMemory, err)
	}
	return memory, nil
}

// CreateMemory stores an unprocessed memory about a person.
func (s *MemoryService) CreateMemory(ctx context.Context, personID, rawInput string) (*types.Memory, error) {
	if strings.TrimSpace(rawInput) == "" {
		return nil, ErrEmptyContent
	}

	_, err := s.store.GetPerson(ctx, personID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fail(ErrPersonNotFound, err)
	}
	if err != nil {
		s.logger.Error("person lookup failed", zap.String("person_id", personID), zap.Error(err))
		return nil, fail(ErrCreateMemory, err)
	}

	memory := types.NewUnprocessedMemory(personID, rawInput)
	if err := s.insert(ctx, memory); err != nil {
		return nil, err
	}
	return memory, nil
}

// SaveUnprocessed creates a memory and schedules it for enrichment.
func (s *MemoryService) SaveUnprocessed(ctx context.Context, personID, rawInput string) (*types.Memory, error) {
	memory, err := s.CreateMemory(ctx, personID, rawInput)
	if err != nil {
		return nil, err
	}
	s.enqueue(memory.ID)
	return memory, nil
}

// ImportMemory stores a fully built memory, keeping its ID and creation
// time. Unprocessed memories are scheduled for enrichment.
func (s *MemoryService) ImportMemory(ctx context.Context, memory *types.Memory) error {
	if memory == nil {
		return ErrInvalidMemory
	}
	if strings.TrimSpace(memory.RawInput) == "" {
		return ErrEmptyContent
	}
	if err := s.insert(ctx, memory); err != nil {
		return err
	}
	if !memory.IsProcessed {
		s.enqueue(memory.ID)
	}
	return nil
}

func (s *MemoryService) insert(ctx context.Context, memory *types.Memory) error {
	if err := memory.Validate(); err != nil {
		return fail(ErrInvalidMemory, err)
	}

	err := s.store.CreateMemory(ctx, memory)
	if errors.Is(err, storage.ErrNotFound) {
		return fail(ErrPersonNotFound, err)
	}
	if err != nil {
		s.logger.Error("create memory failed", zap.String("person_id", memory.PersonID), zap.Error(err))
		return fail(ErrCreateMemory, err)
	}

	s.logger.Debug("memory created",
		zap.String("memory_id", memory.ID),
		zap.String("person_id", memory.PersonID),
		zap.Bool("processed", memory.IsProcessed))
	s.notifier.Notify(types.NewEvent(types.EventMemoryCreated, memory.PersonID, memory.ID))
	return nil
}

func (s *MemoryService) enqueue(memoryID string) {
	if s.queue == nil {
		return
	}
	if !s.queue.Enqueue(memoryID) {
		s.logger.Warn("memory left unprocessed, enrichment queue unavailable", zap.String("memory_id", memoryID))
	}
}

// ApplyAnalysis writes analysis fields onto a stored memory and marks it
// processed.
func (s *MemoryService) ApplyAnalysis(ctx context.Context, memoryID string, analysis types.Analysis) (*types.Memory, error) {
	existing, err := s.store.GetMemory(ctx, memoryID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fail(ErrMemoryNotFound, err)
	}
	if err != nil {
		s.logger.Error("load memory for analysis failed", zap.String("memory_id", memoryID), zap.Error(err))
		return nil, fail(ErrUpdateMemory, err)
	}

	updated := existing.WithAnalysis(analysis)
	err = s.store.UpdateMemory(ctx, updated)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fail(ErrMemoryNotFound, err)
	}
	if err != nil {
		s.logger.Error("apply analysis failed", zap.String("memory_id", memoryID), zap.Error(err))
		return nil, fail(ErrUpdateMemory, err)
	}

	s.notifier.Notify(types.NewEvent(types.EventMemoryProcessed, updated.PersonID, updated.ID))
	return updated, nil
}

// UpdateMemory replaces the mutable fields of a stored memory.
func (s *MemoryService) UpdateMemory(ctx context.Context, memory *types.Memory) error {
	if memory == nil {
		return ErrInvalidMemory
	}
	memory.RawInput = strings.TrimSpace(memory.RawInput)
	if err := memory.Validate(); err != nil {
		return fail(ErrInvalidMemory, err)
	}

	err := s.store.UpdateMemory(ctx, memory)
	if errors.Is(err, storage.ErrNotFound) {
		return fail(ErrMemoryNotFound, err)
	}
	if err != nil {
		s.logger.Error("update memory failed", zap.String("memory_id", memory.ID), zap.Error(err))
		return fail(ErrUpdateMemory, err)
	}

	s.notifier.Notify(types.NewEvent(types.EventMemoryUpdated, memory.PersonID, memory.ID))
	return nil
}

// DeleteMemory removes one memory.
func (s *MemoryService) DeleteMemory(ctx context.Context, id string) error {
	existing, err := s.store.GetMemory(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fail(ErrMemoryNotFound, err)
	}
	if err != nil {
		return fail(ErrDeleteMemory, err)
	}

	err = s.store.DeleteMemory(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fail(ErrMemoryNotFound, err)
	}
	if err != nil {
		s.logger.Error("delete memory failed", zap.String("memory_id", id), zap.Error(err))
		return fail(ErrDeleteMemory, err)
	}

	s.notifier.Notify(types.NewEvent(types.EventMemoryDeleted, existing.PersonID, id))
	return nil
}

// DeleteMemoriesForPerson removes every memory of a person.
func (s *MemoryService) DeleteMemoriesForPerson(ctx context.Context, personID string) (int, error) {
	n, err := s.store.DeleteMemoriesForPerson(ctx, personID)
	if err != nil {
		s.logger.Error("delete memories failed", zap.String("person_id", personID), zap.Error(err))
		return 0, fail(ErrDeleteMemories, err)
	}
	if n > 0 {
		s.notifier.Notify(types.NewEvent(types.EventMemoryDeleted, personID, ""))
	}
	return n, nil
}

// CountMemoriesForPerson returns how many memories a person has.
func (s *MemoryService) CountMemoriesForPerson(ctx context.Context, personID string) (int, error) {
	n, err := s.store.CountMemoriesForPerson(ctx, personID)
	if err != nil {
		return 0, fail(ErrCountMemories, err)
	}
	return n, nil
}
