package notify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scrypster/companion/pkg/types"
)

func TestEventWriterCreatesFile(t *testing.T) {
	dir := t.TempDir()
	w := NewEventWriter(dir, zap.NewNop())

	require.NoError(t, w.Write(types.NewEvent(types.EventMemoryProcessed, "p1", "m1")))

	entries, err := os.ReadDir(filepath.Join(dir, "events"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".event", filepath.Ext(entries[0].Name()))
}

func TestEventWatcherReceivesEvent(t *testing.T) {
	dir := t.TempDir()
	received := make(chan types.Event, 1)

	watcher := NewEventWatcher(dir, func(e types.Event) { received <- e }, zap.NewNop())
	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	// Give fsnotify a moment to register
	time.Sleep(50 * time.Millisecond)

	NewEventWriter(dir, nil).Notify(types.NewEvent(types.EventMemoryCreated, "p1", "m1"))

	select {
	case e := <-received:
		assert.Equal(t, types.EventMemoryCreated, e.Type)
		assert.Equal(t, "p1", e.PersonID)
		assert.Equal(t, "m1", e.MemoryID)
		assert.False(t, e.Time.IsZero())
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestEventWatcherDrainsExisting(t *testing.T) {
	dir := t.TempDir()

	// Write events BEFORE starting watcher
	writer := NewEventWriter(dir, nil)
	require.NoError(t, writer.Write(types.NewEvent(types.EventPersonCreated, "p1", "")))
	require.NoError(t, writer.Write(types.NewEvent(types.EventMemoryDeleted, "p1", "m2")))

	received := make(chan types.Event, 10)
	watcher := NewEventWatcher(dir, func(e types.Event) { received <- e }, nil)
	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	// Drain processes both files synchronously during Start
	assert.Len(t, received, 2)

	entries, err := os.ReadDir(writer.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "consumed files are removed")
}

func TestEventWatcherIgnoresInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	eventsDir := filepath.Join(dir, "events")
	require.NoError(t, os.MkdirAll(eventsDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(eventsDir, "1-bad.event"), []byte("{not json"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(eventsDir, "2-untyped.event"), []byte(`{"memory_id":"m1"}`), 0o600))

	called := false
	watcher := NewEventWatcher(dir, func(types.Event) { called = true }, nil)
	require.NoError(t, watcher.Start())
	watcher.Stop()

	assert.False(t, called)
}

func TestEventWatcherStopWithoutStart(t *testing.T) {
	watcher := NewEventWatcher(t.TempDir(), nil, nil)

	done := make(chan struct{})
	go func() {
		watcher.Stop()
		watcher.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked without Start")
	}
}

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, "mem_general_abc_def", sanitizeID("mem:general:abc/def"))
	assert.Equal(t, "___etc", sanitizeID("../etc"))
}
