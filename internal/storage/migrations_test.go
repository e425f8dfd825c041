package storage_test

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/scrypster/companion/internal/storage"
)

func TestMigrator_AppliesInOrderAndIsIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	fsys := fstest.MapFS{
		"002_add_col.up.sql": {Data: []byte("ALTER TABLE things ADD COLUMN label TEXT;")},
		"001_init.up.sql":    {Data: []byte("CREATE TABLE things (id TEXT PRIMARY KEY);")},
		"README.md":          {Data: []byte("ignored")},
		"bad_name.up.sql":    {Data: []byte("this is not sql")},
	}

	m, err := storage.NewMigrator(db, fsys, storage.QuestionBindVar)
	require.NoError(t, err)

	ctx := context.Background()
	applied, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	version, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	_, err = db.Exec("INSERT INTO things (id, label) VALUES ('a', 'b')")
	assert.NoError(t, err, "both migrations must have run")

	applied, err = m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, applied, "second run must be a no-op")
}

func TestNewMigrator_RequiresDB(t *testing.T) {
	_, err := storage.NewMigrator(nil, fstest.MapFS{}, nil)
	assert.Error(t, err)
}

func TestDollarBindVar(t *testing.T) {
	assert.Equal(t, "$3", storage.DollarBindVar(3))
	assert.Equal(t, "?", storage.QuestionBindVar(3))
}
