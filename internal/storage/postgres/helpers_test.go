package postgres

import (
	"context"
	"fmt"
)

// TruncateForTest removes all rows from every table. It lives in the
// postgres package so it can reach the unexported db field, and is exported
// for the postgres_test package.
func (s *Store) TruncateForTest(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "TRUNCATE TABLE memory_embeddings, memories, persons, settings CASCADE")
	if err != nil {
		return fmt.Errorf("postgres: failed to truncate tables: %w", err)
	}
	return nil
}
