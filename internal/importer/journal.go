// Package importer turns a directory of Markdown journal files into
// memories. Each file is one memory; the person comes from the frontmatter
// or the enclosing directory, and a frontmatter analysis is kept as is.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/engine"
	"github.com/scrypster/companion/pkg/types"
)

var errNoPerson = errors.New("no person in frontmatter or path")

// ImportReport summarizes a completed import.
type ImportReport struct {
	Files          int           `json:"files"`
	Imported       int           `json:"imported"`
	Processed      int           `json:"processed"` // Imported with a frontmatter analysis
	Skipped        int           `json:"skipped"`
	PersonsCreated int           `json:"persons_created"`
	Errors         []string      `json:"errors,omitempty"`
	Duration       time.Duration `json:"duration_ms"`
}

// JournalImporter imports Markdown journals through the engine services, so
// imported memories emit events and unprocessed ones are queued for
// enrichment.
type JournalImporter struct {
	persons  *engine.PersonService
	memories *engine.MemoryService
	logger   *zap.Logger
}

// NewJournalImporter creates an importer.
func NewJournalImporter(persons *engine.PersonService, memories *engine.MemoryService, logger *zap.Logger) *JournalImporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalImporter{persons: persons, memories: memories, logger: logger}
}

// Import walks dirPath and stores one memory per Markdown file. Per-file
// failures are collected in the report; only an unreadable root fails.
func (imp *JournalImporter) Import(ctx context.Context, dirPath string) (*ImportReport, error) {
	info, err := os.Stat(dirPath)
	if err != nil {
		return nil, fmt.Errorf("cannot access directory %q: %w", dirPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", dirPath)
	}

	start := time.Now()
	report := &ImportReport{}

	files, err := collectMarkdownFiles(dirPath)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dirPath, err)
	}
	report.Files = len(files)

	created := make(map[string]bool)
	for _, absPath := range files {
		if ctx.Err() != nil {
			report.Errors = append(report.Errors, "context cancelled")
			break
		}

		rel, _ := filepath.Rel(dirPath, absPath)
		if err := imp.importFile(ctx, absPath, rel, report, created); err != nil {
			imp.logger.Warn("import: file failed", zap.String("file", rel), zap.Error(err))
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", rel, err))
		}
	}

	report.PersonsCreated = len(created)
	report.Duration = time.Since(start)
	imp.logger.Info("import complete",
		zap.String("dir", dirPath),
		zap.Int("files", report.Files),
		zap.Int("imported", report.Imported),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}

func (imp *JournalImporter) importFile(ctx context.Context, absPath, rel string, report *ImportReport, created map[string]bool) error {
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	entry, err := ParseJournalEntry(data, rel, info.ModTime())
	if err != nil {
		return err
	}
	if entry.Body == "" {
		report.Skipped++
		return nil
	}
	if entry.Person == "" {
		report.Skipped++
		return errNoPerson
	}

	person, isNew, err := imp.persons.FindOrCreate(ctx, entry.Person)
	if err != nil {
		return fmt.Errorf("person %q: %w", entry.Person, err)
	}
	if isNew {
		created[person.ID] = true
	}

	memory := types.NewUnprocessedMemory(person.ID, entry.Body)
	memory.CreatedAt = entry.CreatedAt
	if entry.Analysis != nil {
		memory = memory.WithAnalysis(*entry.Analysis)
	}

	if err := imp.memories.ImportMemory(ctx, memory); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	report.Imported++
	if memory.IsProcessed {
		report.Processed++
	}
	return nil
}

// collectMarkdownFiles walks dirPath and returns all .md / .markdown files found.
// Hidden directories (e.g. .git, .obsidian) are skipped.
func collectMarkdownFiles(dirPath string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dirPath && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext == ".md" || ext == ".markdown" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
