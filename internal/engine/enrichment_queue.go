package engine

import (
	"time"

	"go.uber.org/zap"
)

// Enqueue queues a memory for enrichment. It returns false when the queue is
// full or shutting down. A memory already queued or in progress is not
// queued twice; Enqueue reports true for it.
func (e *Enricher) Enqueue(memoryID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shuttingDown {
		return false
	}
	if _, ok := e.pending[memoryID]; ok {
		return true
	}

	job := &EnrichmentJob{MemoryID: memoryID, Timestamp: time.Now()}
	select {
	case e.queue <- job:
		e.pending[memoryID] = struct{}{}
		return true
	default:
		e.logger.Warn("enrichment queue full, dropping job",
			zap.Int("queue_size", e.config.QueueSize),
			zap.String("memory_id", memoryID))
		return false
	}
}

// requeue schedules a failed job for another attempt. It returns false when
// the retries are exhausted or the queue cannot take the job.
func (e *Enricher) requeue(job *EnrichmentJob) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.shuttingDown {
		e.logger.Warn("not requeueing, shutdown in progress", zap.String("memory_id", job.MemoryID))
		return false
	}

	if job.Attempt >= e.config.MaxRetries {
		e.logger.Warn("max retries exceeded, giving up",
			zap.Int("max_retries", e.config.MaxRetries),
			zap.String("memory_id", job.MemoryID))
		return false
	}

	job.Attempt++

	select {
	case e.queue <- job:
		e.logger.Debug("requeued enrichment job",
			zap.String("memory_id", job.MemoryID),
			zap.Int("attempt", job.Attempt),
			zap.Int("max_retries", e.config.MaxRetries))
		return true
	case <-time.After(10 * time.Millisecond):
		e.logger.Warn("failed to requeue job, queue timeout", zap.String("memory_id", job.MemoryID))
		return false
	}
}

// finish releases a memory so it can be queued again.
func (e *Enricher) finish(memoryID string) {
	e.mu.Lock()
	delete(e.pending, memoryID)
	e.mu.Unlock()
}
