package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/scrypster/companion/pkg/types"
)

// enrichmentWorker processes jobs until the queue is closed.
func (e *Enricher) enrichmentWorker(ctx context.Context, workerID int) {
	defer e.workerWG.Done()

	e.logger.Debug("enrichment worker started", zap.Int("worker", workerID))

	for job := range e.queue {
		e.processJob(ctx, workerID, job)
	}

	e.logger.Debug("enrichment worker stopped", zap.Int("worker", workerID))
}

// processJob analyzes one memory and applies the result.
func (e *Enricher) processJob(ctx context.Context, workerID int, job *EnrichmentJob) {
	log := e.logger.With(
		zap.Int("worker", workerID),
		zap.String("memory_id", job.MemoryID),
		zap.Int("attempt", job.Attempt))

	if job.Attempt > 0 {
		backoff := retryBackoff(job.Attempt)
		log.Debug("waiting before retry", zap.Duration("backoff", backoff))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
		}
	}
	if ctx.Err() != nil {
		e.finish(job.MemoryID)
		e.observe(OutcomeSkipped)
		return
	}

	// Storage calls use a background context so shutdown never leaves a
	// half-written row.
	dbCtx := context.Background()

	memory, err := e.memories.GetMemory(dbCtx, job.MemoryID)
	if errors.Is(err, ErrMemoryNotFound) {
		log.Debug("memory deleted before enrichment")
		e.finish(job.MemoryID)
		e.observe(OutcomeSkipped)
		return
	}
	if err != nil {
		e.retry(log, job, err)
		return
	}
	if memory.IsProcessed {
		e.finish(job.MemoryID)
		e.observe(OutcomeSkipped)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, e.config.JobTimeout)
	defer cancel()

	start := time.Now()
	analysis, err := e.analyzer.Analyze(jobCtx, memory.RawInput)
	if err != nil {
		if ctx.Err() != nil {
			e.finish(job.MemoryID)
			e.observe(OutcomeSkipped)
			return
		}
		e.retry(log, job, err)
		return
	}

	if analysis.IsEmpty() {
		log.Info("analysis empty, memory left unprocessed", zap.Duration("elapsed", time.Since(start)))
		e.finish(job.MemoryID)
		e.observe(OutcomeEmpty)
		return
	}

	updated, err := e.memories.ApplyAnalysis(dbCtx, job.MemoryID, analysis)
	if errors.Is(err, ErrMemoryNotFound) {
		e.finish(job.MemoryID)
		e.observe(OutcomeSkipped)
		return
	}
	if err != nil {
		e.retry(log, job, err)
		return
	}

	e.storeEmbedding(jobCtx, log, updated)

	log.Info("memory enriched",
		zap.String("topic", updated.Topic),
		zap.Duration("elapsed", time.Since(start)))
	e.finish(job.MemoryID)
	e.observe(OutcomeProcessed)

	e.mu.RLock()
	fn := e.onProcessed
	e.mu.RUnlock()
	if fn != nil {
		fn(*updated)
	}
}

func (e *Enricher) retry(log *zap.Logger, job *EnrichmentJob, cause error) {
	log.Warn("enrichment attempt failed", zap.Error(Cause(cause)))
	if e.requeue(job) {
		e.observe(OutcomeRetried)
		return
	}
	log.Error("enrichment failed, memory left unprocessed", zap.Error(Cause(cause)))
	e.finish(job.MemoryID)
	e.observe(OutcomeFailed)
}

// storeEmbedding embeds the memory text. Failures are logged and do not
// fail the job.
func (e *Enricher) storeEmbedding(ctx context.Context, log *zap.Logger, memory *types.Memory) {
	e.mu.RLock()
	gen, store := e.embedder, e.embeddings
	e.mu.RUnlock()
	if gen == nil || store == nil {
		return
	}

	vec, err := gen.Embed(ctx, EmbeddingText(memory))
	if err != nil {
		log.Warn("embedding generation failed", zap.Error(err))
		return
	}
	if err := store.StoreEmbedding(context.Background(), memory.ID, vec, gen.GetModel()); err != nil {
		log.Warn("embedding store failed", zap.Error(err))
		return
	}
	log.Debug("embedding stored", zap.Int("dimension", len(vec)))
}

// EmbeddingText is the text embedded for a memory: its raw input followed by
// the summary when there is one.
func EmbeddingText(memory *types.Memory) string {
	if memory.AISummary == "" {
		return memory.RawInput
	}
	return memory.RawInput + "\n" + memory.AISummary
}

// startWorkerPool starts the worker goroutines.
func (e *Enricher) startWorkerPool(ctx context.Context) {
	for i := 0; i < e.config.NumWorkers; i++ {
		e.workerWG.Add(1)
		go e.enrichmentWorker(ctx, i)
	}

	e.logger.Info("started enrichment workers", zap.Int("workers", e.config.NumWorkers))
}

// stopWorkerPool waits for the workers to drain the closed queue.
func (e *Enricher) stopWorkerPool(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.workerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("all enrichment workers finished")
		return nil
	case <-time.After(e.config.ShutdownTimeout):
		e.logger.Warn("shutdown timeout reached, enrichment jobs may be dropped", zap.Int("remaining", e.QueueLength()))
		return nil
	case <-ctx.Done():
		e.logger.Warn("context cancelled, enrichment jobs may be dropped", zap.Int("remaining", e.QueueLength()))
		return ctx.Err()
	}
}
