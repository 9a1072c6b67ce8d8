package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shaggydog-ai/shaggydog/internal/db/models"
	"github.com/shaggydog-ai/shaggydog/internal/db/repos"
	"github.com/shaggydog-ai/shaggydog/internal/logger"
)

// Write-retry policy for job store mutations. A failed write is retried a
// bounded number of times before the pipeline gives up and leaves the job at
// its last-known-good state.
const (
	storeWriteAttempts = 3
	storeWriteBackoff  = 200 * time.Millisecond
)

// ErrInvalidStage indicates an unknown stage name was requested
var ErrInvalidStage = errors.New("invalid stage name")

// Job provides business logic for transformation jobs: submission, queries
// and the asynchronous generation pipeline.
type Job struct {
	repo       *repos.JobRepository
	detector   *Detector
	generator  *Generator
	stageCount int
}

// NewJobService creates a new job service instance
func NewJobService(repo *repos.JobRepository, detector *Detector, generator *Generator, stageCount int) *Job {
	if stageCount < 2 {
		stageCount = models.DefaultStageCount
	}
	return &Job{
		repo:       repo,
		detector:   detector,
		generator:  generator,
		stageCount: stageCount,
	}
}

// StageCount returns the configured number of generated stages per job
func (s *Job) StageCount() int {
	return s.stageCount
}

// Submit creates a new job for the owner. The record is durable with status
// processing before this returns; the caller is expected to enqueue the
// pipeline afterwards.
func (s *Job) Submit(ctx context.Context, ownerID uint, image []byte) (*models.Job, error) {
	job := &models.Job{
		OwnerID:       ownerID,
		OriginalImage: image,
		StageCount:    s.stageCount,
		Status:        models.JobStatusProcessing,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// Get retrieves a job scoped to its owner
func (s *Job) Get(ctx context.Context, ownerID, jobID uint) (*models.Job, error) {
	return s.repo.GetByID(ctx, ownerID, jobID)
}

// List retrieves the owner's jobs, newest first
func (s *Job) List(ctx context.Context, ownerID uint, opts *models.ListOptions) ([]models.Job, error) {
	return s.repo.List(ctx, ownerID, opts)
}

// StageBytes returns the image bytes for a named stage of an owned job.
// "original" resolves to the uploaded portrait; generated stages are
// "transition1".."transitionN" and "final". A nil slice with no error means
// the stage has not completed yet.
func (s *Job) StageBytes(ctx context.Context, ownerID, jobID uint, stageName string) ([]byte, error) {
	job, err := s.repo.GetByID(ctx, ownerID, jobID)
	if err != nil {
		return nil, err
	}

	if stageName == "original" {
		return job.OriginalImage, nil
	}

	index, err := models.StageIndexForName(stageName, job.StageCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStage, stageName)
	}
	return s.repo.GetStageImage(ctx, jobID, index)
}

// Run executes the generation pipeline for one job: detect the breed, then
// generate every stage concurrently, persisting each output as it arrives.
// The final status write is the last mutation. Running a job that is no
// longer processing is a no-op.
func (s *Job) Run(ctx context.Context, jobID uint) error {
	job, err := s.repo.GetAny(ctx, jobID)
	if err != nil {
		return fmt.Errorf("pipeline could not load job %d: %w", jobID, err)
	}
	if job.Status != models.JobStatusProcessing {
		logger.Infof("Job %d already %s, skipping", jobID, job.Status)
		return nil
	}

	// A job re-queued by the reconciliation sweep may already carry a breed
	// and some stage outputs; resume from where the previous run stopped
	// rather than redoing paid work or colliding with the write-once slots.
	filled := make(map[int]bool, len(job.Stages))
	for _, stage := range job.Stages {
		filled[stage.StageIndex] = true
	}

	breed := job.Breed
	if breed == "" {
		detected, reasoning, err := s.detector.DetectBreed(ctx, job.OriginalImage)
		if err != nil {
			// Detection short-circuits the pipeline; there is nothing to
			// generate without a breed.
			s.fail(ctx, jobID, fmt.Sprintf("breed detection: %v", err))
			return fmt.Errorf("job %d detection failed: %w", jobID, err)
		}
		if err := s.retryWrite(ctx, func() error {
			return s.repo.UpdateBreed(ctx, jobID, detected)
		}); err != nil {
			// Leave the job processing; the reconciliation sweep will retry it.
			return fmt.Errorf("job %d breed write failed: %w", jobID, err)
		}
		breed = detected
		logger.InfoWithFields("Breed detected", map[string]interface{}{
			"job_id":    jobID,
			"breed":     breed,
			"reasoning": reasoning,
		})
	} else {
		logger.Infof("Job %d resuming with breed %q", jobID, breed)
	}

	// One goroutine per unfilled stage. Failures are collected per slot;
	// every stage is always attempted so in-flight work is never wasted on a
	// sibling failure.
	stageErrs := make([]error, job.StageCount)
	var wg sync.WaitGroup
	for i := 0; i < job.StageCount; i++ {
		if filled[i] {
			continue
		}
		wg.Add(1)
		go func(stage int) {
			defer wg.Done()
			data, err := s.generator.GenerateStage(ctx, stage, job.StageCount, breed)
			if err != nil {
				stageErrs[stage] = err
				return
			}
			stageErrs[stage] = s.retryWrite(ctx, func() error {
				return s.repo.SetStageImage(ctx, jobID, stage, data)
			})
		}(i)
	}
	wg.Wait()

	var failures []error
	for _, stageErr := range stageErrs {
		if stageErr != nil {
			failures = append(failures, stageErr)
		}
	}
	if len(failures) > 0 {
		err := errors.Join(failures...)
		s.fail(ctx, jobID, err.Error())
		return fmt.Errorf("job %d generation failed: %w", jobID, err)
	}

	if err := s.retryWrite(ctx, func() error {
		_, err := s.repo.UpdateStatus(ctx, jobID, models.JobStatusCompleted, "")
		return err
	}); err != nil {
		return fmt.Errorf("job %d completion write failed: %w", jobID, err)
	}
	logger.Infof("Job %d completed", jobID)
	return nil
}

// fail marks the job failed, retaining the error text for operators. Write
// errors are logged but not propagated; the job stays at its last-known-good
// state.
func (s *Job) fail(ctx context.Context, jobID uint, errMsg string) {
	err := s.retryWrite(ctx, func() error {
		_, err := s.repo.UpdateStatus(ctx, jobID, models.JobStatusFailed, errMsg)
		return err
	})
	if err != nil {
		logger.Errorf("Failed to mark job %d failed: %v", jobID, err)
	}
}

// retryWrite retries a store mutation with linear backoff
func (s *Job) retryWrite(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < storeWriteAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt < storeWriteAttempts-1 {
			timer := time.NewTimer(time.Duration(attempt+1) * storeWriteBackoff)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return lastErr
}
