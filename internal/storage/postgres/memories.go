package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (`+memoryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb, $10, $11)`,
		memory.ID, memory.PersonID, memory.RawInput, memory.AISummary, memory.Topic,
		nullableString(memory.Emotion), nullableString(memory.TimeReference),
		actions, details, memory.CreatedAt.UnixMilli(), memory.IsProcessed,
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: person %s", storage.ErrNotFound, memory.PersonID)
	}
	if err != nil {
		return fmt.Errorf("postgres: failed to insert memory: %w", err)
	}
	return nil
}

// GetMemory retrieves a memory by ID.
func (s *Store) GetMemory(ctx context.Context, id string) (*types.Memory, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+memoryColumns+" FROM memories WHERE id = $1", id)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: memory %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get memory: %w", err)
	}
	return m, nil
}

// UpdateMemory replaces the mutable fields of a memory.
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
		UPDATE memories SET person_id = $1, raw_input = $2, ai_summary = $3, topic = $4,
			emotion = $5, time_reference = $6, action_items = $7::jsonb, key_details = $8::jsonb,
			is_processed = $9
		WHERE id = $10`,
		memory.PersonID, memory.RawInput, memory.AISummary, memory.Topic,
		nullableString(memory.Emotion), nullableString(memory.TimeReference),
		actions, details, memory.IsProcessed, memory.ID,
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: person %s", storage.ErrNotFound, memory.PersonID)
	}
	if err != nil {
		return fmt.Errorf("postgres: failed to update memory: %w", err)
	}
	return requireAffected(res, "memory", memory.ID)
}

// DeleteMemory removes a memory by ID.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM memories WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete memory: %w", err)
	}
	return requireAffected(res, "memory", id)
}

// DeleteMemoriesForPerson removes every memory of a person.
func (s *Store) DeleteMemoriesForPerson(ctx context.Context, personID string) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM memories WHERE person_id = $1", personID)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to delete memories: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to read affected rows: %w", err)
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
	next := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if query.PersonID != "" {
		where = append(where, "person_id = "+next(query.PersonID))
	}
	if query.Processed != nil {
		where = append(where, "is_processed = "+next(*query.Processed))
	}
	if term := strings.TrimSpace(query.Search); term != "" {
		p := next(storage.LikePattern(term))
		where = append(where, fmt.Sprintf(
			`(raw_input ILIKE %[1]s ESCAPE '\' OR ai_summary ILIKE %[1]s ESCAPE '\' OR topic ILIKE %[1]s ESCAPE '\')`, p))
	}

	stmt := "SELECT " + memoryColumns + " FROM memories"
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY created_at DESC, id DESC"
	if query.Limit > 0 {
		stmt += " LIMIT " + next(query.Limit)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list memories: %w", err)
	}
	defer rows.Close()

	memories := []types.Memory{}
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan memory: %w", err)
		}
		memories = append(memories, *m)
	}
	return memories, rows.Err()
}

// CountMemoriesForPerson returns how many memories a person has.
func (s *Store) CountMemoriesForPerson(ctx context.Context, personID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories WHERE person_id = $1", personID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to count memories: %w", err)
	}
	return n, nil
}

// CountMemoriesByPerson returns memory counts keyed by person ID.
func (s *Store) CountMemoriesByPerson(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT person_id, COUNT(*) FROM memories GROUP BY person_id")
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to count memories: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func encodeLists(m *types.Memory) (string, string, error) {
	actions, err := storage.EncodeList(m.ActionItems)
	if err != nil {
		return "", "", fmt.Errorf("postgres: failed to marshal action items: %w", err)
	}
	details, err := storage.EncodeList(m.KeyDetails)
	if err != nil {
		return "", "", fmt.Errorf("postgres: failed to marshal key details: %w", err)
	}
	return actions, details, nil
}

func scanMemory(row scanner) (*types.Memory, error) {
	var (
		m                types.Memory
		emotion, timeRef sql.NullString
		actions, details []byte
		createdAt        int64
	)
	err := row.Scan(&m.ID, &m.PersonID, &m.RawInput, &m.AISummary, &m.Topic, &emotion, &timeRef,
		&actions, &details, &createdAt, &m.IsProcessed)
	if err != nil {
		return nil, err
	}
	m.Emotion = stringPtr(emotion)
	m.TimeReference = stringPtr(timeRef)
	m.ActionItems = storage.DecodeList(string(actions))
	m.KeyDetails = storage.DecodeList(string(details))
	m.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &m, nil
}
