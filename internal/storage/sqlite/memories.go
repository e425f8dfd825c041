package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/pkg/types"
)

const memoryColumns = `id, person_id, raw_input, ai_summary, topic, emotion, time_reference,
	action_items, key_details, created_at, is_processed`

// CreateMemory inserts a new memory. A missing person yields ErrNotFound.
func (s *Store) CreateMemory(ctx context.Context, memory *types.Memory) error {
	if memory == nil || memory.ID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}
	if err := memory.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = time.Now().UTC()
	}

	actions, details, err := encodeLists(memory)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO memories ("+memoryColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		memory.ID, memory.PersonID, memory.RawInput, memory.AISummary, memory.Topic,
		nullableString(memory.Emotion), nullableString(memory.TimeReference),
		actions, details, memory.CreatedAt.UnixMilli(), memory.IsProcessed,
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: person %s", storage.ErrNotFound, memory.PersonID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

// GetMemory retrieves a memory by ID.
func (s *Store) GetMemory(ctx context.Context, id string) (*types.Memory, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+memoryColumns+" FROM memories WHERE id = ?", id)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: memory %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}
	return m, nil
}

// UpdateMemory replaces the mutable fields of a memory. The creation time
// is preserved.
func (s *Store) UpdateMemory(ctx context.Context, memory *types.Memory) error {
	if memory == nil || memory.ID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}
	if err := memory.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	actions, details, err := encodeLists(memory)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE memories SET person_id = ?, raw_input = ?, ai_summary = ?, topic = ?,
			emotion = ?, time_reference = ?, action_items = ?, key_details = ?, is_processed = ?
		WHERE id = ?`,
		memory.PersonID, memory.RawInput, memory.AISummary, memory.Topic,
		nullableString(memory.Emotion), nullableString(memory.TimeReference),
		actions, details, memory.IsProcessed, memory.ID,
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: person %s", storage.ErrNotFound, memory.PersonID)
	}
	if err != nil {
		return fmt.Errorf("failed to update memory: %w", err)
	}
	return requireAffected(res, "memory", memory.ID)
}

// DeleteMemory removes a memory by ID.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	return requireAffected(res, "memory", id)
}

// DeleteMemoriesForPerson removes all memories of a person.
func (s *Store) DeleteMemoriesForPerson(ctx context.Context, personID string) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM memories WHERE person_id = ?", personID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete memories: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}

// ListMemories returns memories newest first, filtered by the query.
func (s *Store) ListMemories(ctx context.Context, query storage.MemoryQuery) ([]types.Memory, error) {
	query.Normalize()

	var (
		where []string
		args  []interface{}
	)
	if query.PersonID != "" {
		where = append(where, "person_id = ?")
		args = append(args, query.PersonID)
	}
	if query.Processed != nil {
		where = append(where, "is_processed = ?")
		args = append(args, *query.Processed)
	}
	if term := strings.TrimSpace(query.Search); term != "" {
		pattern := storage.LikePattern(term)
		where = append(where, `(raw_input LIKE ? ESCAPE '\' OR ai_summary LIKE ? ESCAPE '\' OR topic LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	stmt := "SELECT " + memoryColumns + " FROM memories"
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY created_at DESC, id DESC"
	if query.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, query.Limit)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()

	memories := []types.Memory{}
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		memories = append(memories, *m)
	}
	return memories, rows.Err()
}

// CountMemoriesForPerson returns how many memories a person has.
func (s *Store) CountMemoriesForPerson(ctx context.Context, personID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories WHERE person_id = ?", personID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count memories: %w", err)
	}
	return n, nil
}

// CountMemoriesByPerson returns memory counts keyed by person ID.
func (s *Store) CountMemoriesByPerson(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT person_id, COUNT(*) FROM memories GROUP BY person_id")
	if err != nil {
		return nil, fmt.Errorf("failed to count memories: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func encodeLists(m *types.Memory) (string, string, error) {
	actions, err := storage.EncodeList(m.ActionItems)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal action items: %w", err)
	}
	details, err := storage.EncodeList(m.KeyDetails)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal key details: %w", err)
	}
	return actions, details, nil
}

func scanMemory(row scanner) (*types.Memory, error) {
	var (
		m                types.Memory
		emotion, timeRef sql.NullString
		actions, details string
		createdAt        int64
	)
	err := row.Scan(&m.ID, &m.PersonID, &m.RawInput, &m.AISummary, &m.Topic, &emotion, &timeRef,
		&actions, &details, &createdAt, &m.IsProcessed)
	if err != nil {
		return nil, err
	}
	m.Emotion = stringPtr(emotion)
	m.TimeReference = stringPtr(timeRef)
	m.ActionItems = storage.DecodeList(actions)
	m.KeyDetails = storage.DecodeList(details)
	m.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &m, nil
}
