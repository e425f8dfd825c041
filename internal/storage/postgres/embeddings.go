package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/storage"
)

// StoreEmbedding stores a vector embedding for a memory.
// The embedding is always stored in the BYTEA column; when pgvector is
// available it is also stored in embedding_vec for cosine-distance queries.
func (s *Store) StoreEmbedding(ctx context.Context, memoryID string, embedding []float32, model string) error {
	if memoryID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding is empty", storage.ErrInvalidInput)
	}

	blob := storage.EncodeVector(embedding)
	now := time.Now().UnixMilli()

	if s.pgvectorAvailable {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO memory_embeddings (memory_id, embedding, dimension, model, embedding_vec, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT(memory_id) DO UPDATE SET
				embedding = excluded.embedding,
				dimension = excluded.dimension,
				model = excluded.model,
				embedding_vec = excluded.embedding_vec,
				updated_at = excluded.updated_at`,
			memoryID, blob, len(embedding), model, pgvector.NewVector(embedding), now,
		)
		if err == nil {
			return nil
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: memory %s", storage.ErrNotFound, memoryID)
		}
		s.logger.Warn("postgres: failed to store embedding_vec, falling back to BYTEA only", zap.Error(err))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_embeddings (memory_id, embedding, dimension, model, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT(memory_id) DO UPDATE SET
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			model = excluded.model,
			updated_at = excluded.updated_at`,
		memoryID, blob, len(embedding), model, now,
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: memory %s", storage.ErrNotFound, memoryID)
	}
	if err != nil {
		return fmt.Errorf("postgres: failed to store embedding: %w", err)
	}
	return nil
}

// GetEmbedding returns the stored embedding of a memory.
func (s *Store) GetEmbedding(ctx context.Context, memoryID string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT embedding FROM memory_embeddings WHERE memory_id = $1", memoryID,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: embedding for memory %s", storage.ErrNotFound, memoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get embedding: %w", err)
	}
	return storage.DecodeVector(blob), nil
}

// NearestMemories ranks embeddings of the same dimension by cosine
// similarity, in pgvector when available and in process otherwise.
func (s *Store) NearestMemories(ctx context.Context, embedding []float32, limit int) ([]storage.ScoredID, error) {
	if len(embedding) == 0 || limit <= 0 {
		return []storage.ScoredID{}, nil
	}
	if s.pgvectorAvailable {
		results, err := s.nearestPgvector(ctx, embedding, limit)
		if err == nil {
			return results, nil
		}
		s.logger.Warn("postgres: pgvector search failed, scoring in process", zap.Error(err))
	}
	return s.nearestInProcess(ctx, embedding, limit)
}

func (s *Store) nearestPgvector(ctx context.Context, embedding []float32, limit int) ([]storage.ScoredID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT memory_id, 1 - (embedding_vec <=> $1) AS score
		FROM memory_embeddings
		WHERE embedding_vec IS NOT NULL AND dimension = $2
		ORDER BY embedding_vec <=> $1
		LIMIT $3`,
		pgvector.NewVector(embedding), len(embedding), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []storage.ScoredID{}
	for rows.Next() {
		var r storage.ScoredID
		if err := rows.Scan(&r.MemoryID, &r.Score); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) nearestInProcess(ctx context.Context, embedding []float32, limit int) ([]storage.ScoredID, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT memory_id, embedding FROM memory_embeddings WHERE dimension = $1", len(embedding),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query embeddings: %w", err)
	}
	defer rows.Close()

	scored := []storage.ScoredID{}
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan embedding: %w", err)
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
