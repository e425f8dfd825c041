package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scrypster/companion/pkg/types"
)

func names(view types.PersonListView) []string {
	out := make([]string, 0, len(view.Persons))
	for _, p := range view.Persons {
		out = append(out, p.Name)
	}
	return out
}

func TestDirectory_ListPersons(t *testing.T) {
	env := newTestEnv(t)
	dir := NewDirectory(env.persons, env.memories, zap.NewNop())
	ctx := context.Background()

	view := dir.ListPersons(ctx, types.SortLatest, "")
	assert.Equal(t, types.ViewEmpty, view.State)
	assert.NotNil(t, view.Persons)

	bob := env.seedPerson(t, "bob", t0)
	alice := env.seedPerson(t, "Alice", t0.Add(time.Hour))
	carol := env.seedPerson(t, "Carol", t0.Add(2*time.Hour))
	env.seedMemory(t, bob.ID, "one", "", t0)
	env.seedMemory(t, bob.ID, "two", "", t0)
	env.seedMemory(t, alice.ID, "three", "", t0)

	tests := []struct {
		sort types.PersonSort
		want []string
	}{
		{types.SortLatest, []string{"Carol", "Alice", "bob"}},
		{types.SortAlphabetical, []string{"Alice", "bob", "Carol"}},
		{types.SortMostMemories, []string{"bob", "Alice", "Carol"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.sort), func(t *testing.T) {
			view := dir.ListPersons(ctx, tt.sort, "")
			assert.Equal(t, types.ViewSuccess, view.State)
			assert.Equal(t, tt.sort, view.Sort)
			assert.Equal(t, tt.want, names(view))
		})
	}

	view = dir.ListPersons(ctx, types.SortLatest, "car")
	assert.Equal(t, []string{"Carol"}, names(view))
	assert.Equal(t, 0, view.Persons[0].MemoryCount)
	assert.Equal(t, carol.ID, view.Persons[0].ID)

	view = dir.ListPersons(ctx, types.SortMostMemories, "")
	assert.Equal(t, 2, view.Persons[0].MemoryCount)
}

func TestDirectory_ListPersons_StoreFailure(t *testing.T) {
	env := newTestEnv(t)
	dir := NewDirectory(env.persons, env.memories, zap.NewNop())
	require.NoError(t, env.store.Close())

	view := dir.ListPersons(context.Background(), types.SortLatest, "")
	assert.Equal(t, types.ViewError, view.State)
	assert.Equal(t, "Failed to load persons", view.Error)
}

func TestDirectory_PersonDetail(t *testing.T) {
	env := newTestEnv(t)
	dir := NewDirectory(env.persons, env.memories, zap.NewNop())
	ctx := context.Background()

	view := dir.PersonDetail(ctx, "missing")
	assert.Equal(t, types.ViewError, view.State)
	assert.Equal(t, "Person not found", view.Error)

	p := env.seedPerson(t, "Sam", t0)
	view = dir.PersonDetail(ctx, p.ID)
	assert.Equal(t, types.ViewEmpty, view.State)
	require.NotNil(t, view.Person)

	older := env.seedMemory(t, p.ID, "older", "", t0)
	newer := env.seedMemory(t, p.ID, "newer", "", t0.Add(time.Minute))
	view = dir.PersonDetail(ctx, p.ID)
	assert.Equal(t, types.ViewSuccess, view.State)
	assert.Equal(t, []string{newer.ID, older.ID}, ids(view.Memories))

	require.NoError(t, dir.DeleteMemory(ctx, older.ID))
	assert.Len(t, dir.PersonDetail(ctx, p.ID).Memories, 1)
}

func TestSortPersons_StableTies(t *testing.T) {
	persons := []types.PersonSummary{
		{Person: types.Person{Name: "zed"}, MemoryCount: 1},
		{Person: types.Person{Name: "amy"}, MemoryCount: 1},
		{Person: types.Person{Name: "Amy"}, MemoryCount: 2},
	}
	SortPersons(persons, types.SortMostMemories)
	assert.Equal(t, "Amy", persons[0].Name)
	assert.Equal(t, "zed", persons[1].Name)
	assert.Equal(t, "amy", persons[2].Name)
}
