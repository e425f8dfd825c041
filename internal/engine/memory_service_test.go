package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/companion/pkg/types"
)

func TestMemoryService_CreateMemory_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.memories.CreateMemory(ctx, "anyone", "  ")
	assert.ErrorIs(t, err, ErrEmptyContent)
	assert.Equal(t, "Memory content cannot be empty", err.Error())

	_, err = env.memories.CreateMemory(ctx, "missing", "met for lunch")
	assert.ErrorIs(t, err, ErrPersonNotFound)
	assert.Equal(t, "Person not found", err.Error())

	assert.Empty(t, env.events.Types())
}

func TestMemoryService_CreateAndApplyAnalysis(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.seedPerson(t, "Sam", t0)

	m, err := env.memories.CreateMemory(ctx, p.ID, "  Sam turns 30 next week  ")
	require.NoError(t, err)
	assert.Equal(t, "Sam turns 30 next week", m.RawInput)
	assert.False(t, m.IsProcessed)

	updated, err := env.memories.ApplyAnalysis(ctx, m.ID, sampleAnalysis())
	require.NoError(t, err)
	assert.True(t, updated.IsProcessed)

	got, err := env.memories.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsProcessed)
	assert.Equal(t, "Birthday Plans", got.Topic)
	assert.Equal(t, "Sam's birthday is next week.", got.AISummary)
	assert.Equal(t, []string{"buy a cake"}, got.ActionItems)
	if assert.NotNil(t, got.Emotion) {
		assert.Equal(t, "happy", *got.Emotion)
	}

	assert.Equal(t, []types.EventType{types.EventMemoryCreated, types.EventMemoryProcessed}, env.events.Types())
}

func TestMemoryService_ApplyAnalysis_MissingMemory(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.memories.ApplyAnalysis(context.Background(), "missing", sampleAnalysis())
	assert.ErrorIs(t, err, ErrMemoryNotFound)
	assert.Equal(t, "Memory not found", err.Error())
}

func TestMemoryService_UpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.seedPerson(t, "Sam", t0)
	m := env.seedMemory(t, p.ID, "original", "", t0)

	m.RawInput = " "
	assert.ErrorIs(t, env.memories.UpdateMemory(ctx, m), ErrInvalidMemory)

	m.RawInput = "edited"
	require.NoError(t, env.memories.UpdateMemory(ctx, m))

	got, err := env.memories.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.RawInput)

	require.NoError(t, env.memories.DeleteMemory(ctx, m.ID))
	assert.ErrorIs(t, env.memories.DeleteMemory(ctx, m.ID), ErrMemoryNotFound)

	_, err = env.memories.GetMemory(ctx, m.ID)
	assert.ErrorIs(t, err, ErrMemoryNotFound)

	assert.Equal(t, []types.EventType{types.EventMemoryUpdated, types.EventMemoryDeleted}, env.events.Types())
}

func TestMemoryService_Lists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sam := env.seedPerson(t, "Sam", t0)
	alex := env.seedPerson(t, "Alex", t0)
	env.seedMemory(t, sam.ID, "coffee chat", "Coffee", t0)
	env.seedMemory(t, sam.ID, "needs a ride", "", t0.Add(1))
	env.seedMemory(t, alex.ID, "moved to Lisbon", "Relocation", t0.Add(2))

	all, err := env.memories.ListMemories(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	processed, err := env.memories.ProcessedMemories(ctx)
	require.NoError(t, err)
	assert.Len(t, processed, 2)

	unprocessed, err := env.memories.UnprocessedMemories(ctx)
	require.NoError(t, err)
	require.Len(t, unprocessed, 1)
	assert.Equal(t, "needs a ride", unprocessed[0].RawInput)

	forSam, err := env.memories.MemoriesForPerson(ctx, sam.ID)
	require.NoError(t, err)
	assert.Len(t, forSam, 2)

	found, err := env.memories.SearchMemories(ctx, "lisbon")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, alex.ID, found[0].PersonID)

	n, err := env.memories.DeleteMemoriesForPerson(ctx, sam.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryService_SaveUnprocessedEnqueues(t *testing.T) {
	env := newTestEnv(t)
	queue := &fakeQueue{}
	env.memories.SetEnqueuer(queue)
	p := env.seedPerson(t, "Sam", t0)

	m, err := env.memories.SaveUnprocessed(context.Background(), p.ID, "call Sam back")
	require.NoError(t, err)
	assert.Equal(t, []string{m.ID}, queue.IDs())

	processed := types.NewUnprocessedMemory(p.ID, "imported").WithAnalysis(sampleAnalysis())
	require.NoError(t, env.memories.ImportMemory(context.Background(), processed))
	assert.Equal(t, []string{m.ID}, queue.IDs(), "processed imports are not queued")
}
