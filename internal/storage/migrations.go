package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

// ErrNoMigration indicates no migration has been applied yet.
var ErrNoMigration = errors.New("no migration")

// Migrator applies numbered SQL migrations embedded in the binary.
// Files are named NNN_name.up.sql and applied in version order; the applied
// version is tracked in a schema_migrations table.
type Migrator struct {
	db *sql.DB
	fs fs.FS

	// bindVar renders the n-th (1-indexed) query placeholder of the dialect.
	bindVar func(n int) string
}

// migration is a single up migration.
type migration struct {
	version uint
	name    string
	path    string
}

// QuestionBindVar renders "?" placeholders (SQLite).
func QuestionBindVar(int) string { return "?" }

// DollarBindVar renders "$n" placeholders (PostgreSQL).
func DollarBindVar(n int) string { return "$" + strconv.Itoa(n) }

// NewMigrator creates a Migrator reading migrations from the root of fsys.
func NewMigrator(db *sql.DB, fsys fs.FS, bindVar func(int) string) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("migrations: database connection is required")
	}
	if fsys == nil {
		return nil, fmt.Errorf("migrations: migration filesystem is required")
	}
	if bindVar == nil {
		bindVar = QuestionBindVar
	}
	return &Migrator{db: db, fs: fsys, bindVar: bindVar}, nil
}

func (m *Migrator) ensureSchemaTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// Up applies all pending migrations in ascending version order and returns
// how many were applied. Already up to date is not an error.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureSchemaTable(ctx); err != nil {
		return 0, fmt.Errorf("migrations: failed to create schema table: %w", err)
	}

	migrations, err := m.load()
	if err != nil {
		return 0, fmt.Errorf("migrations: failed to load migration files: %w", err)
	}

	current, err := m.Version(ctx)
	if err != nil && !errors.Is(err, ErrNoMigration) {
		return 0, fmt.Errorf("migrations: failed to get current version: %w", err)
	}

	applied := 0
	for _, mig := range migrations {
		if mig.version <= current {
			continue
		}

		body, err := fs.ReadFile(m.fs, mig.path)
		if err != nil {
			return applied, fmt.Errorf("migrations: failed to read %s: %w", mig.path, err)
		}

		if _, err := m.db.ExecContext(ctx, string(body)); err != nil {
			return applied, fmt.Errorf("migrations: failed to apply version %d (%s): %w", mig.version, mig.name, err)
		}

		record := "INSERT INTO schema_migrations (version) VALUES (" + m.bindVar(1) + ")"
		if _, err := m.db.ExecContext(ctx, record, mig.version); err != nil {
			return applied, fmt.Errorf("migrations: failed to record version %d: %w", mig.version, err)
		}
		applied++
	}

	return applied, nil
}

// Version returns the highest applied migration version, or ErrNoMigration
// when none has been applied.
func (m *Migrator) Version(ctx context.Context) (uint, error) {
	var version int64
	err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("migrations: failed to query version: %w", err)
	}
	if version == 0 {
		return 0, ErrNoMigration
	}
	return uint(version), nil
}

// load parses the NNN_name.up.sql files at the root of the filesystem.
func (m *Migrator) load() ([]migration, error) {
	entries, err := fs.ReadDir(m.fs, ".")
	if err != nil {
		return nil, err
	}

	var migrations []migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		idx := strings.Index(name, "_")
		if idx < 0 {
			continue
		}
		version, err := strconv.ParseUint(name[:idx], 10, 64)
		if err != nil {
			continue // Skip non-numeric prefix files
		}

		migrations = append(migrations, migration{
			version: uint(version),
			name:    strings.TrimSuffix(name[idx+1:], ".up.sql"),
			path:    name,
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})
	return migrations, nil
}
