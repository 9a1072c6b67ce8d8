package services

import (
	"context"
	"sync"

	"github.com/shaggydog-ai/shaggydog/internal/db/models"
	"github.com/shaggydog-ai/shaggydog/internal/logger"
)

// DefaultWorkers is the default number of concurrent pipelines. Each
// pipeline fans out one generation call per stage, so the effective
// concurrency against the capability is workers * stage count.
const DefaultWorkers = 2

// Pool runs generation pipelines on a bounded set of workers so a burst of
// uploads cannot open an unbounded number of capability calls.
type Pool struct {
	jobs    *Job
	queue   chan uint
	workers int
}

// NewPool creates a worker pool for the given job service
func NewPool(jobs *Job, workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{
		jobs:    jobs,
		queue:   make(chan uint, workers*4),
		workers: workers,
	}
}

// Start launches the worker goroutines. They drain the queue until the
// context is cancelled.
func (p *Pool) Start(ctx context.Context, wg *sync.WaitGroup) {
	logger.Infof("Starting %d pipeline workers", p.workers)
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.worker(ctx, wg)
	}
}

// Enqueue hands a job to the pool without blocking the caller. When the
// queue is full the job is marked failed rather than silently dropped, so
// the gallery reflects reality.
func (p *Pool) Enqueue(ctx context.Context, jobID uint) {
	select {
	case p.queue <- jobID:
	default:
		logger.Warnf("Pipeline queue full, failing job %d", jobID)
		if _, err := p.jobs.repo.UpdateStatus(ctx, jobID, models.JobStatusFailed, "generation queue full"); err != nil {
			logger.Errorf("Failed to mark job %d failed: %v", jobID, err)
		}
	}
}

// Reconcile re-queues every job left in processing by an earlier run.
// Without this sweep a crash mid-pipeline would leave jobs stuck forever.
func (p *Pool) Reconcile(ctx context.Context) error {
	ids, err := p.jobs.repo.ListByStatus(ctx, models.JobStatusProcessing)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	logger.Infof("Re-queuing %d abandoned jobs", len(ids))
	for _, id := range ids {
		p.Enqueue(ctx, id)
	}
	return nil
}

func (p *Pool) worker(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Worker received shutdown signal, stopping...")
			return
		case jobID := <-p.queue:
			if err := p.jobs.Run(ctx, jobID); err != nil {
				logger.Errorf("Pipeline for job %d: %v", jobID, err)
			}
		}
	}
}
