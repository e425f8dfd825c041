package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func writeBackup(t *testing.T, dir string, created time.Time, size int) string {
	t.Helper()
	path := filepath.Join(dir, backupName(created))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestBackupName(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 600000000, time.UTC)
	name := backupName(ts)
	assert.Equal(t, "companion-backup-20260102-030405.600000.db", name)

	parsed, ok := parseBackupName(name)
	require.True(t, ok)
	assert.True(t, ts.Equal(parsed))

	for _, bad := range []string{"backup.db", "companion-backup-x.db", "companion-backup-20260102-030405.600000.txt"} {
		_, ok := parseBackupName(bad)
		assert.False(t, ok, bad)
	}
}

func TestListBackups(t *testing.T) {
	dir := t.TempDir()
	older := writeBackup(t, dir, now.Add(-2*time.Hour), 10)
	newer := writeBackup(t, dir, now.Add(-time.Hour), 20)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.db"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, backupName(now)), 0o755))

	backups, err := listBackups(dir)
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, newer, backups[0].Path)
	assert.Equal(t, older, backups[1].Path)
	assert.Equal(t, int64(30), diskUsage(backups))

	_, err = listBackups(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestExpired_Tiers(t *testing.T) {
	policy := RetentionPolicy{Hourly: 2, Daily: 1, Weekly: 1, Monthly: 1}

	var backups []Info
	add := func(age time.Duration) {
		backups = append(backups, Info{Name: age.String(), CreatedAt: now.Add(-age)})
	}
	// Newest first.
	add(1 * time.Hour)
	add(2 * time.Hour)
	add(3 * time.Hour) // third hourly
	add(2 * day)
	add(3 * day) // second daily
	add(10 * day)
	add(60 * day)
	add(90 * day) // second monthly
	add(400 * day)

	var dropped []string
	for _, b := range expired(backups, policy, now) {
		dropped = append(dropped, b.Name)
	}
	assert.Equal(t, []string{
		(3 * time.Hour).String(),
		(3 * day).String(),
		(90 * day).String(),
		(400 * day).String(),
	}, dropped)
}

func TestApplyRetention(t *testing.T) {
	dir := t.TempDir()
	keep := writeBackup(t, dir, now.Add(-time.Hour), 1)
	drop := writeBackup(t, dir, now.Add(-2*time.Hour), 1)
	ancient := writeBackup(t, dir, now.Add(-400*day), 1)

	removed, err := applyRetention(dir, RetentionPolicy{Hourly: 1, Daily: 1, Weekly: 1, Monthly: 1}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.FileExists(t, keep)
	assert.NoFileExists(t, drop)
	assert.NoFileExists(t, ancient)
}

func TestRetentionDefaults(t *testing.T) {
	assert.Equal(t, DefaultRetention(), RetentionPolicy{}.withDefaults())
	assert.Equal(t, 3, RetentionPolicy{Hourly: 3}.withDefaults().Hourly)
}
