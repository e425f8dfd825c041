// Package engine holds the workflows of Memory Companion: the person and
// memory services, the capture (add-memory) and query sessions, the person
// directory, and the background enricher that analyzes memories saved
// without review.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/scrypster/companion/pkg/types"
)

// Analyzer turns memory text into structured analysis fields.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (types.Analysis, error)
}

// Answerer answers a question from a set of memories.
type Answerer interface {
	Answer(ctx context.Context, question string, memories []types.Memory) (string, error)
}

// Assistant is the AI surface used by capture and query sessions.
type Assistant interface {
	Analyzer
	Answerer
}

// EnrichmentJob is a queued request to analyze one memory.
type EnrichmentJob struct {
	// MemoryID is the memory to analyze.
	MemoryID string

	// Timestamp is when the job was first queued.
	Timestamp time.Time

	// Attempt counts retries; zero for the first run.
	Attempt int
}

// Enrichment outcomes reported to the outcome observer.
const (
	OutcomeProcessed = "processed"
	OutcomeEmpty     = "empty"
	OutcomeSkipped   = "skipped"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
)

// EnricherConfig holds configuration for the background enricher.
type EnricherConfig struct {
	// NumWorkers is the number of enrichment worker goroutines (default: 2).
	NumWorkers int

	// QueueSize is the size of the enrichment job queue buffer (default: 1000).
	QueueSize int

	// ShutdownTimeout is the maximum time to wait for workers to drain on shutdown (default: 30s).
	ShutdownTimeout time.Duration

	// MaxRetries is the maximum number of retry attempts per memory (default: 3).
	MaxRetries int

	// RecoveryBatchSize caps how many unprocessed memories Start queues (default: 1000).
	RecoveryBatchSize int

	// JobTimeout bounds a single analysis call (default: 90s).
	JobTimeout time.Duration
}

// DefaultEnricherConfig returns an EnricherConfig with sensible defaults.
func DefaultEnricherConfig() EnricherConfig {
	return EnricherConfig{
		NumWorkers:        2,
		QueueSize:         1000,
		ShutdownTimeout:   30 * time.Second,
		MaxRetries:        3,
		RecoveryBatchSize: 1000,
		JobTimeout:        90 * time.Second,
	}
}

// Validate checks if the config is valid.
func (c *EnricherConfig) Validate() error {
	if c.NumWorkers < 1 {
		return fmt.Errorf("NumWorkers must be >= 1, got %d", c.NumWorkers)
	}

	if c.QueueSize < 1 {
		return fmt.Errorf("QueueSize must be >= 1, got %d", c.QueueSize)
	}

	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("ShutdownTimeout must be >= 0, got %v", c.ShutdownTimeout)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("MaxRetries must be >= 0, got %d", c.MaxRetries)
	}

	if c.RecoveryBatchSize < 1 {
		return fmt.Errorf("RecoveryBatchSize must be >= 1, got %d", c.RecoveryBatchSize)
	}

	if c.JobTimeout <= 0 {
		return fmt.Errorf("JobTimeout must be > 0, got %v", c.JobTimeout)
	}

	return nil
}

// retryBackoff is the delay before retry attempt n: 100ms, 400ms, 900ms...
func retryBackoff(attempt int) time.Duration {
	return time.Duration(attempt*attempt) * 100 * time.Millisecond
}
