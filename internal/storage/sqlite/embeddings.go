package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/scrypster/companion/internal/storage"
)

// StoreEmbedding stores or replaces the embedding of a memory.
func (s *Store) StoreEmbedding(ctx context.Context, memoryID string, embedding []float32, model string) error {
	if memoryID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding is empty", storage.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_embeddings (memory_id, embedding, dimension, model, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(memory_id) DO UPDATE SET
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			model = excluded.model,
			updated_at = excluded.updated_at`,
		memoryID, storage.EncodeVector(embedding), len(embedding), model, time.Now().UnixMilli(),
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: memory %s", storage.ErrNotFound, memoryID)
	}
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// GetEmbedding returns the stored embedding of a memory.
func (s *Store) GetEmbedding(ctx context.Context, memoryID string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT embedding FROM memory_embeddings WHERE memory_id = ?", memoryID,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: embedding for memory %s", storage.ErrNotFound, memoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}
	return storage.DecodeVector(blob), nil
}

// NearestMemories ranks stored embeddings of the same dimension by cosine
// similarity. SQLite has no vector index, so every candidate is scored in Go.
func (s *Store) NearestMemories(ctx context.Context, embedding []float32, limit int) ([]storage.ScoredID, error) {
	if len(embedding) == 0 || limit <= 0 {
		return []storage.ScoredID{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT memory_id, embedding FROM memory_embeddings WHERE dimension = ?", len(embedding),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	scored := []storage.ScoredID{}
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		scored = append(scored, storage.ScoredID{
			MemoryID: id,
			Score:    storage.CosineSimilarity(embedding, storage.DecodeVector(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}
