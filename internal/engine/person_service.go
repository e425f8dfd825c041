package engine

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/pkg/types"
)

// PersonService exposes person operations with user-facing errors and
// change events.
type PersonService struct {
	store    storage.PersonStore
	notifier Notifier
	logger   *zap.Logger
}

// NewPersonService wraps a person store. A nil notifier or logger is
// replaced by a no-op.
func NewPersonService(store storage.PersonStore, notifier Notifier, logger *zap.Logger) *PersonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersonService{store: store, notifier: notifierOrNop(notifier), logger: logger}
}

// ListPersons returns every person, newest first.
func (s *PersonService) ListPersons(ctx context.Context) ([]types.Person, error) {
	persons, err := s.store.ListPersons(ctx, storage.PersonQuery{})
	if err != nil {
		s.logger.Error("list persons failed", zap.Error(err))
		return nil, fail(ErrLoadPersons, err)
	}
	return persons, nil
}

// SearchPersons returns the persons whose name contains query.
func (s *PersonService) SearchPersons(ctx context.Context, query string) ([]types.Person, error) {
	persons, err := s.store.ListPersons(ctx, storage.PersonQuery{Search: strings.TrimSpace(query)})
	if err != nil {
		s.logger.Error("search persons failed", zap.String("query", query), zap.Error(err))
		return nil, fail(ErrSearchPersons, err)
	}
	return persons, nil
}

// GetPerson loads one person. A missing person yields ErrPersonNotFound.
func (s *PersonService) GetPerson(ctx context.Context, id string) (*types.Person, error) {
	person, err := s.store.GetPerson(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fail(ErrPersonNotFound, err)
	}
	if err != nil {
		s.logger.Error("get person failed", zap.String("person_id", id), zap.Error(err))
		return nil, fail(ErrLoadPerson, err)
	}
	return person, nil
}

// CreatePerson stores a new person with the given name and optional photo.
func (s *PersonService) CreatePerson(ctx context.Context, name string, photoURI *string) (*types.Person, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}

	person := types.NewPerson(name, photoURI)
	if err := person.Validate(); err != nil {
		return nil, fail(ErrInvalidPerson, err)
	}

	if err := s.store.CreatePerson(ctx, person); err != nil {
		s.logger.Error("create person failed", zap.String("name", person.Name), zap.Error(err))
		return nil, fail(ErrCreatePerson, err)
	}

	s.logger.Debug("person created", zap.String("person_id", person.ID))
	s.notifier.Notify(types.NewEvent(types.EventPersonCreated, person.ID, ""))
	return person, nil
}

// UpdatePerson renames a person and replaces their photo reference.
func (s *PersonService) UpdatePerson(ctx context.Context, person *types.Person) error {
	if person == nil {
		return ErrInvalidPerson
	}
	person.Name = strings.TrimSpace(person.Name)
	if err := person.Validate(); err != nil {
		return fail(ErrInvalidPerson, err)
	}

	err := s.store.UpdatePerson(ctx, person)
	if errors.Is(err, storage.ErrNotFound) {
		return fail(ErrPersonNotFound, err)
	}
	if err != nil {
		s.logger.Error("update person failed", zap.String("person_id", person.ID), zap.Error(err))
		return fail(ErrUpdatePerson, err)
	}

	s.notifier.Notify(types.NewEvent(types.EventPersonUpdated, person.ID, ""))
	return nil
}

// DeletePerson removes a person together with all of their memories.
func (s *PersonService) DeletePerson(ctx context.Context, id string) error {
	err := s.store.DeletePerson(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fail(ErrPersonNotFound, err)
	}
	if err != nil {
		s.logger.Error("delete person failed", zap.String("person_id", id), zap.Error(err))
		return fail(ErrDeletePerson, err)
	}

	s.logger.Info("person deleted", zap.String("person_id", id))
	s.notifier.Notify(types.NewEvent(types.EventPersonDeleted, id, ""))
	return nil
}

// CountPersons returns how many persons are stored.
func (s *PersonService) CountPersons(ctx context.Context) (int, error) {
	n, err := s.store.CountPersons(ctx)
	if err != nil {
		return 0, fail(ErrCountPersons, err)
	}
	return n, nil
}

// FindOrCreate returns the person whose name matches exactly (ignoring case),
// creating one when none exists.
func (s *PersonService) FindOrCreate(ctx context.Context, name string) (*types.Person, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, ErrEmptyName
	}

	candidates, err := s.SearchPersons(ctx, name)
	if err != nil {
		return nil, false, err
	}
	for i := range candidates {
		if strings.EqualFold(candidates[i].Name, name) {
			return &candidates[i], false, nil
		}
	}

	person, err := s.CreatePerson(ctx, name, nil)
	if err != nil {
		return nil, false, err
	}
	return person, true, nil
}
