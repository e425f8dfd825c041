package engine

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/llm"
	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/pkg/types"
)

// Enricher analyzes memories that were saved without review. Jobs flow
// through a buffered queue to a fixed pool of workers; a non-empty analysis
// is applied to the memory and, when an embedder is configured, the memory
// embedding is stored.
type Enricher struct {
	memories *MemoryService
	analyzer Analyzer
	config   EnricherConfig
	logger   *zap.Logger

	embedder   llm.EmbeddingGenerator
	embeddings storage.EmbeddingStore

	queue   chan *EnrichmentJob
	pending map[string]struct{}

	workerCtx    context.Context
	workerCancel context.CancelFunc
	workerWG     sync.WaitGroup

	// mu guards the lifecycle flags, pending and the hooks below.
	mu           sync.RWMutex
	started      bool
	shuttingDown bool

	onProcessed func(memory types.Memory)
	onOutcome   func(outcome string)
}

// NewEnricher creates an enricher. Call Start to launch the workers.
func NewEnricher(memories *MemoryService, analyzer Analyzer, config EnricherConfig, logger *zap.Logger) (*Enricher, error) {
	if memories == nil {
		return nil, errors.New("memory service is required")
	}
	if analyzer == nil {
		return nil, errors.New("analyzer is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Enricher{
		memories: memories,
		analyzer: analyzer,
		config:   config,
		logger:   logger.Named("enricher"),
		queue:    make(chan *EnrichmentJob, config.QueueSize),
		pending:  make(map[string]struct{}),
	}, nil
}

// SetEmbedder enables embedding generation for processed memories.
func (e *Enricher) SetEmbedder(gen llm.EmbeddingGenerator, store storage.EmbeddingStore) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.embedder = gen
	e.embeddings = store
}

// SetOnProcessed registers a callback fired after a memory was analyzed and
// updated.
func (e *Enricher) SetOnProcessed(fn func(memory types.Memory)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onProcessed = fn
}

// SetOutcomeObserver registers a callback fired with the outcome of every job.
func (e *Enricher) SetOutcomeObserver(fn func(outcome string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onOutcome = fn
}

// Start launches the worker pool and queues unprocessed memories left from
// earlier runs.
func (e *Enricher) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return errors.New("enricher already started")
	}
	if e.shuttingDown {
		e.mu.Unlock()
		return errors.New("enricher is shut down")
	}
	e.workerCtx, e.workerCancel = context.WithCancel(context.Background())
	e.started = true
	e.mu.Unlock()

	e.startWorkerPool(e.workerCtx)

	go func() {
		if err := e.RecoverUnprocessed(ctx); err != nil {
			e.logger.Error("enrichment recovery failed", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown stops accepting jobs and waits for the workers to drain, up to
// ShutdownTimeout or until ctx is done. Analysis calls in flight are
// cancelled; their memories stay unprocessed and are recovered on the next
// Start.
func (e *Enricher) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.shuttingDown {
		e.mu.Unlock()
		return nil
	}
	e.shuttingDown = true
	started := e.started
	close(e.queue)
	e.mu.Unlock()

	if !started {
		return nil
	}
	e.workerCancel()
	return e.stopWorkerPool(ctx)
}

// RecoverUnprocessed queues every unprocessed memory, up to
// RecoveryBatchSize.
func (e *Enricher) RecoverUnprocessed(ctx context.Context) error {
	memories, err := e.memories.QueryMemories(ctx, storage.MemoryQuery{
		Processed: storage.Bool(false),
		Limit:     e.config.RecoveryBatchSize,
	})
	if err != nil {
		return err
	}
	if len(memories) == 0 {
		e.logger.Debug("no unprocessed memories to recover")
		return nil
	}

	queued := 0
	for _, m := range memories {
		if e.Enqueue(m.ID) {
			queued++
		}
	}

	e.logger.Info("enrichment recovery complete",
		zap.Int("found", len(memories)),
		zap.Int("queued", queued))
	if len(memories) == e.config.RecoveryBatchSize {
		e.logger.Warn("recovery batch full, remaining memories are queued on the next start",
			zap.Int("batch_size", e.config.RecoveryBatchSize))
	}
	return nil
}

// QueueLength returns the number of jobs waiting in the queue.
func (e *Enricher) QueueLength() int {
	return len(e.queue)
}

func (e *Enricher) observe(outcome string) {
	e.mu.RLock()
	fn := e.onOutcome
	e.mu.RUnlock()
	if fn != nil {
		fn(outcome)
	}
}
