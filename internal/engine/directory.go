package engine

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/scrypster/companion/pkg/types"
)

// Directory builds the person list and person detail views.
type Directory struct {
	persons  *PersonService
	memories *MemoryService
	logger   *zap.Logger
}

// NewDirectory creates a Directory.
func NewDirectory(persons *PersonService, memories *MemoryService, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{persons: persons, memories: memories, logger: logger}
}

// ListPersons returns the persons matching search with their memory counts,
// ordered by sort.
func (d *Directory) ListPersons(ctx context.Context, order types.PersonSort, search string) types.PersonListView {
	view := types.PersonListView{Sort: order, Persons: []types.PersonSummary{}}

	var (
		persons []types.Person
		err     error
	)
	if strings.TrimSpace(search) == "" {
		persons, err = d.persons.ListPersons(ctx)
	} else {
		persons, err = d.persons.SearchPersons(ctx, search)
	}
	if err != nil {
		view.State = types.ViewError
		view.Error = ErrLoadPersons.Error()
		return view
	}

	// Counts are decoration; a failure shows zero instead of failing the list.
	counts, err := d.memories.store.CountMemoriesByPerson(ctx)
	if err != nil {
		d.logger.Warn("memory counts unavailable", zap.Error(err))
		counts = map[string]int{}
	}

	if len(persons) == 0 {
		view.State = types.ViewEmpty
		return view
	}

	for _, p := range persons {
		view.Persons = append(view.Persons, types.PersonSummary{Person: p, MemoryCount: counts[p.ID]})
	}
	SortPersons(view.Persons, order)
	view.State = types.ViewSuccess
	return view
}

// SortPersons orders summaries in place. The input is expected newest
// first; the sort is stable so ties keep that order.
func SortPersons(persons []types.PersonSummary, order types.PersonSort) {
	switch order {
	case types.SortAlphabetical:
		sort.SliceStable(persons, func(i, j int) bool {
			return strings.ToLower(persons[i].Name) < strings.ToLower(persons[j].Name)
		})
	case types.SortMostMemories:
		sort.SliceStable(persons, func(i, j int) bool {
			return persons[i].MemoryCount > persons[j].MemoryCount
		})
	}
}

// PersonDetail returns a person with their memories, newest first.
func (d *Directory) PersonDetail(ctx context.Context, personID string) types.PersonDetailView {
	view := types.PersonDetailView{Memories: []types.Memory{}}

	person, err := d.persons.GetPerson(ctx, personID)
	if err != nil {
		view.State = types.ViewError
		view.Error = err.Error()
		return view
	}
	view.Person = person

	memories, err := d.memories.MemoriesForPerson(ctx, personID)
	if err != nil {
		view.State = types.ViewError
		view.Error = err.Error()
		return view
	}
	if len(memories) == 0 {
		view.State = types.ViewEmpty
		return view
	}
	view.Memories = memories
	view.State = types.ViewSuccess
	return view
}

// DeleteMemory removes a memory shown in a detail view.
func (d *Directory) DeleteMemory(ctx context.Context, memoryID string) error {
	return d.memories.DeleteMemory(ctx, memoryID)
}

// DeletePerson removes a person shown in the list.
func (d *Directory) DeletePerson(ctx context.Context, personID string) error {
	return d.persons.DeletePerson(ctx, personID)
}
