package postgres

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
		"INSERT INTO persons ("+personColumns+") VALUES ($1, $2, $3, $4)",
		person.ID, person.Name, nullableString(person.PhotoURI), person.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to insert person: %w", err)
	}
	return nil
}

// GetPerson retrieves a person by ID.
func (s *Store) GetPerson(ctx context.Context, id string) (*types.Person, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+personColumns+" FROM persons WHERE id = $1", id)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: person %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get person: %w", err)
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
		"UPDATE persons SET name = $1, photo_uri = $2 WHERE id = $3",
		person.Name, nullableString(person.PhotoURI), person.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to update person: %w", err)
	}
	return requireAffected(res, "person", person.ID)
}

// DeletePerson removes a person; memories cascade.
func (s *Store) DeletePerson(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM persons WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete person: %w", err)
	}
	return requireAffected(res, "person", id)
}

// ListPersons returns persons newest first, optionally filtered by name.
func (s *Store) ListPersons(ctx context.Context, query storage.PersonQuery) ([]types.Person, error) {
	stmt := "SELECT " + personColumns + " FROM persons"
	var args []interface{}
	if term := strings.TrimSpace(query.Search); term != "" {
		stmt += ` WHERE name ILIKE $1 ESCAPE '\'`
		args = append(args, storage.LikePattern(term))
	}
	stmt += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list persons: %w", err)
	}
	defer rows.Close()

	persons := []types.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan person: %w", err)
		}
		persons = append(persons, *p)
	}
	return persons, rows.Err()
}

// CountPersons returns the number of persons.
func (s *Store) CountPersons(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM persons").Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: failed to count persons: %w", err)
	}
	return n, nil
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
