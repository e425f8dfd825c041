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

const personColumns = "id, name, photo_uri, created_at"

// CreatePerson inserts a new person.
func (s *Store) CreatePerson(ctx context.Context, person *types.Person) error {
	if person == nil || person.ID == "" {
		return fmt.Errorf("%w: person ID is required", storage.ErrInvalidInput)
	}
	if err := person.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	if person.CreatedAt.IsZero() {
		person.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO persons ("+personColumns+") VALUES (?, ?, ?, ?)",
		person.ID, person.Name, nullableString(person.PhotoURI), person.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert person: %w", err)
	}
	return nil
}

// GetPerson retrieves a person by ID.
func (s *Store) GetPerson(ctx context.Context, id string) (*types.Person, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+personColumns+" FROM persons WHERE id = ?", id)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: person %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	return p, nil
}

// UpdatePerson replaces the name and photo of a person.
func (s *Store) UpdatePerson(ctx context.Context, person *types.Person) error {
	if person == nil || person.ID == "" {
		return fmt.Errorf("%w: person ID is required", storage.ErrInvalidInput)
	}
	if err := person.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE persons SET name = ?, photo_uri = ? WHERE id = ?",
		person.Name, nullableString(person.PhotoURI), person.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update person: %w", err)
	}
	return requireAffected(res, "person", person.ID)
}

// DeletePerson removes a person. Memories and their embeddings cascade.
func (s *Store) DeletePerson(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM persons WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete person: %w", err)
	}
	return requireAffected(res, "person", id)
}

// ListPersons returns persons newest first, optionally filtered by name.
func (s *Store) ListPersons(ctx context.Context, query storage.PersonQuery) ([]types.Person, error) {
	stmt := "SELECT " + personColumns + " FROM persons"
	var args []interface{}
	if term := strings.TrimSpace(query.Search); term != "" {
		stmt += ` WHERE name LIKE ? ESCAPE '\'`
		args = append(args, storage.LikePattern(term))
	}
	stmt += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	defer rows.Close()

	persons := []types.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		persons = append(persons, *p)
	}
	return persons, rows.Err()
}

// CountPersons returns the number of persons.
func (s *Store) CountPersons(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM persons").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count persons: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPerson(row scanner) (*types.Person, error) {
	var (
		p         types.Person
		photo     sql.NullString
		createdAt int64
	)
	if err := row.Scan(&p.ID, &p.Name, &photo, &createdAt); err != nil {
		return nil, err
	}
	p.PhotoURI = stringPtr(photo)
	p.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &p, nil
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", storage.ErrNotFound, kind, id)
	}
	return nil
}
