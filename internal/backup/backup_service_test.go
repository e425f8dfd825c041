package backup

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedDB(t *testing.T, path string, names ...string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS persons (name TEXT)`)
	require.NoError(t, err)
	for _, n := range names {
		_, err = db.Exec(`INSERT INTO persons (name) VALUES (?)`, n)
		require.NoError(t, err)
	}
}

func countPersons(t *testing.T, path string) int {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM persons`).Scan(&n))
	return n
}

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "companion.db")
	seedDB(t, dbPath, "Sam", "Alex")

	svc, err := NewService(Config{
		DBPath: dbPath,
		Dir:    filepath.Join(dir, "backups"),
		Verify: true,
	}, zap.NewNop())
	require.NoError(t, err)
	return svc, dbPath
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(Config{Dir: t.TempDir()}, nil)
	assert.EqualError(t, err, "database path is required")

	_, err = NewService(Config{DBPath: "x.db"}, nil)
	assert.EqualError(t, err, "backup directory is required")
}

func TestBackupNow(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.BackupNow(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Positive(t, result.Size)
	assert.Equal(t, 2, countPersons(t, result.Path))

	backups, err := svc.List()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, result.Path, backups[0].Path)
}

func TestBackupNow_MissingDatabase(t *testing.T) {
	svc, err := NewService(Config{DBPath: filepath.Join(t.TempDir(), "none.db"), Dir: t.TempDir()}, nil)
	require.NoError(t, err)

	_, err = svc.BackupNow(context.Background())
	assert.ErrorContains(t, err, "database not found")
}

func TestRestore(t *testing.T) {
	svc, dbPath := newTestService(t)
	ctx := context.Background()

	result, err := svc.BackupNow(ctx)
	require.NoError(t, err)

	seedDB(t, dbPath, "Jordan")
	require.Equal(t, 3, countPersons(t, dbPath))

	require.NoError(t, svc.Restore(ctx, result.Path))
	assert.Equal(t, 2, countPersons(t, dbPath))
	assert.NoFileExists(t, dbPath+".pre-restore")
}

func TestRestore_RollsBackCorruptBackup(t *testing.T) {
	svc, dbPath := newTestService(t)

	bad := filepath.Join(svc.Dir(), backupName(time.Now()))
	require.NoError(t, os.WriteFile(bad, []byte("not a database"), 0o644))

	err := svc.Restore(context.Background(), bad)
	require.Error(t, err)
	assert.Equal(t, 2, countPersons(t, dbPath), "current database is untouched")

	assert.ErrorContains(t, svc.Restore(context.Background(), filepath.Join(svc.Dir(), "missing.db")), "backup not found")
}

func TestStartStop(t *testing.T) {
	svc, _ := newTestService(t)

	done := make(chan error, 1)
	go func() { done <- svc.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return svc.running
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, svc.Restore(context.Background(), "x"), ErrRunning)
	require.NoError(t, svc.Stop())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Error(t, svc.Stop())
}

func TestHealthCheck(t *testing.T) {
	svc, _ := newTestService(t)

	h, err := svc.HealthCheck()
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, h.Status)
	assert.Equal(t, "No backups yet", h.Message)

	_, err = svc.BackupNow(context.Background())
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(3 * time.Hour) }
	h, err = svc.HealthCheck()
	require.NoError(t, err)
	assert.Equal(t, StatusWarning, h.Status)
	assert.Equal(t, 1, h.TotalBackups)
	assert.Contains(t, h.Message, "overdue")
}

func TestBackupNow_Observer(t *testing.T) {
	svc, _ := newTestService(t)
	var results []error
	svc.SetObserver(func(err error) { results = append(results, err) })

	_, err := svc.BackupNow(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.BackupNow(ctx)
	require.Error(t, err)

	require.Len(t, results, 2)
	assert.NoError(t, results[0])
	assert.ErrorIs(t, results[1], context.Canceled)
}
