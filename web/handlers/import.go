package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/importer"
)

// Import job states.
const (
	importRunning  = "running"
	importComplete = "complete"
	importFailed   = "failed"
)

// importJob is the status of one background journal import.
type importJob struct {
	ID        string                 `json:"job_id"`
	Path      string                 `json:"path"`
	Status    string                 `json:"status"`
	StartedAt time.Time              `json:"started_at"`
	Report    *importer.ImportReport `json:"report,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// ImportHandlers runs journal imports in the background and reports their
// progress.
type ImportHandlers struct {
	importer *importer.JournalImporter
	logger   *zap.Logger
	timeout  time.Duration

	mu   sync.RWMutex
	jobs map[string]*importJob
}

// NewImportHandlers creates import handlers around imp.
func NewImportHandlers(imp *importer.JournalImporter, logger *zap.Logger) *ImportHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportHandlers{
		importer: imp,
		logger:   logger.Named("import"),
		timeout:  30 * time.Minute,
		jobs:     make(map[string]*importJob),
	}
}

// PostImport handles POST /api/import with {"path": "..."}, a directory on
// the server's filesystem. The import runs in the background.
func (h *ImportHandlers) PostImport(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dirPath := strings.TrimSpace(req.Path)
	if !filepath.IsAbs(dirPath) {
		wd, err := os.Getwd()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "cannot determine working directory", err)
			return
		}
		dirPath = filepath.Join(wd, dirPath)
	}
	if info, err := os.Stat(dirPath); err != nil || !info.IsDir() {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("directory not found: %s", req.Path), nil)
		return
	}

	job := &importJob{
		ID:        uuid.New().String(),
		Path:      dirPath,
		Status:    importRunning,
		StartedAt: time.Now().UTC(),
	}
	h.mu.Lock()
	h.jobs[job.ID] = job
	h.mu.Unlock()

	go h.run(job.ID, dirPath)

	respondJSON(w, http.StatusAccepted, h.snapshot(job.ID))
}

func (h *ImportHandlers) run(jobID, dirPath string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	report, err := h.importer.Import(ctx, dirPath)

	h.mu.Lock()
	defer h.mu.Unlock()
	job := h.jobs[jobID]
	job.Report = report
	if err != nil {
		h.logger.Error("import failed", zap.String("job_id", jobID), zap.Error(err))
		job.Status = importFailed
		job.Error = err.Error()
		return
	}
	job.Status = importComplete
}

// GetImportStatus handles GET /api/import/{job_id}.
func (h *ImportHandlers) GetImportStatus(w http.ResponseWriter, r *http.Request) {
	job := h.snapshot(extractID(r, "job_id"))
	if job == nil {
		respondError(w, http.StatusNotFound, "import job not found", nil)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (h *ImportHandlers) snapshot(jobID string) *importJob {
	h.mu.RLock()
	defer h.mu.RUnlock()
	job, ok := h.jobs[jobID]
	if !ok {
		return nil
	}
	cp := *job
	return &cp
}
