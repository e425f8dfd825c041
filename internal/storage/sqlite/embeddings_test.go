package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/companion/internal/storage"
)

func TestEmbedding_StoreAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := createPerson(t, s, "Alice", time.Now())
	m := createMemory(t, s, p.ID, "note", time.Now())

	require.NoError(t, s.StoreEmbedding(ctx, m.ID, []float32{0.1, 0.2, 0.3}, "nomic-embed-text"))
	got, err := s.GetEmbedding(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got)

	require.NoError(t, s.StoreEmbedding(ctx, m.ID, []float32{1, 1}, "other"))
	got, err = s.GetEmbedding(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, got)
}

func TestEmbedding_InvalidInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	assert.ErrorIs(t, s.StoreEmbedding(ctx, "", []float32{1}, "m"), storage.ErrInvalidInput)
	assert.ErrorIs(t, s.StoreEmbedding(ctx, "x", nil, "m"), storage.ErrInvalidInput)
	assert.ErrorIs(t, s.StoreEmbedding(ctx, "missing", []float32{1}, "m"), storage.ErrNotFound)
}

func TestEmbedding_NearestMemories(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	p := createPerson(t, s, "Alice", now)
	near := createMemory(t, s, p.ID, "close", now)
	far := createMemory(t, s, p.ID, "far", now.Add(time.Second))
	other := createMemory(t, s, p.ID, "other dimension", now.Add(2*time.Second))

	require.NoError(t, s.StoreEmbedding(ctx, near.ID, []float32{1, 0.1}, "m"))
	require.NoError(t, s.StoreEmbedding(ctx, far.ID, []float32{0, 1}, "m"))
	require.NoError(t, s.StoreEmbedding(ctx, other.ID, []float32{1, 0, 0}, "m"))

	results, err := s.NearestMemories(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, near.ID, results[0].MemoryID)
	assert.Equal(t, far.ID, results[1].MemoryID)
	assert.Greater(t, results[0].Score, results[1].Score)

	top, err := s.NearestMemories(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	empty, err := s.NearestMemories(ctx, nil, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
