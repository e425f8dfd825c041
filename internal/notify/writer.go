// Package notify carries change events between Memory Companion processes
// through files in a shared directory: the CLI writes one file per event and
// the web server watches the directory and rebroadcasts what it finds.
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/scrypster/companion/pkg/types"
)

const eventExt = ".event"

// EventWriter writes event files to {dataPath}/events/.
type EventWriter struct {
	dir    string
	logger *zap.Logger
}

// NewEventWriter creates a writer that emits events to {dataPath}/events/.
func NewEventWriter(dataPath string, logger *zap.Logger) *EventWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventWriter{dir: filepath.Join(dataPath, "events"), logger: logger}
}

// Dir returns the events directory.
func (w *EventWriter) Dir() string { return w.dir }

// Write stores one event file. The file is written under a temporary name
// and renamed, so a watcher never reads a partial event.
// Safe to call concurrently.
func (w *EventWriter) Write(event types.Event) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("notify: mkdir %s: %w", w.dir, err)
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}

	id := event.MemoryID
	if id == "" {
		id = event.PersonID
	}
	name := fmt.Sprintf("%d-%s", time.Now().UnixNano(), sanitizeID(id))
	tmp := filepath.Join(w.dir, "."+name+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("notify: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, filepath.Join(w.dir, name+eventExt)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("notify: publish event: %w", err)
	}
	return nil
}

// Notify writes the event and logs a failure. It satisfies the engine
// notifier interface.
func (w *EventWriter) Notify(event types.Event) {
	if err := w.Write(event); err != nil {
		w.logger.Warn("event file not written", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// sanitizeID replaces characters unsafe for filenames.
func sanitizeID(id string) string {
	out := make([]byte, len(id))
	for i := 0; i < len(id); i++ {
		switch id[i] {
		case '/', '\\', ':', '.':
			out[i] = '_'
		default:
			out[i] = id[i]
		}
	}
	return string(out)
}
