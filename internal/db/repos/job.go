package repos

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/shaggydog-ai/shaggydog/internal/db/models"
)

// JobRepository provides access to job-related database operations
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository instance
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create creates a new job in the database. The job is durable with status
// processing before any pipeline work starts.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a job by its ID, scoped to the given owner. A job owned
// by someone else yields ErrForbidden without exposing any of its fields.
func (r *JobRepository) GetByID(ctx context.Context, ownerID, id uint) (*models.Job, error) {
	job, err := r.GetAny(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return job, nil
}

// GetAny retrieves a job by its ID regardless of owner. Used by the
// generation pipeline, which runs detached from any request.
func (r *JobRepository) GetAny(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB { return db.Order("stage_index ASC") }).
		First(&job, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// List returns the owner's jobs, newest first. Image payloads are omitted;
// listings only need metadata.
func (r *JobRepository) List(ctx context.Context, ownerID uint, opts *models.ListOptions) ([]models.Job, error) {
	o := opts.WithDefaults()
	var jobs []models.Job
	err := r.db.WithContext(ctx).Model(&models.Job{}).
		Select("id", "created_at", "updated_at", "owner_id", "breed", "stage_count", "status").
		Where(&models.Job{OwnerID: ownerID}).
		Limit(o.Limit).Offset(o.Offset).
		Order(models.JobCreatedAtField + " DESC").
		Find(&jobs).Error
	return jobs, err
}

// ListByStatus returns the IDs of all jobs currently in the given status,
// oldest first. Used by the startup reconciliation sweep.
func (r *JobRepository) ListByStatus(ctx context.Context, status models.JobStatus) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where(&models.Job{Status: status}).
		Order(models.JobCreatedAtField + " ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// Count returns the number of jobs for the owner
func (r *JobRepository) Count(ctx context.Context, ownerID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where(&models.Job{OwnerID: ownerID}).
		Count(&count).Error
	return count, err
}

// UpdateBreed records the detected breed on a job
func (r *JobRepository) UpdateBreed(ctx context.Context, id uint, breed string) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).
		Where(&models.Job{Model: gorm.Model{ID: id}}).
		Update("breed", breed).Error
}

// SetStageImage fills one stage slot with generated bytes. Each slot is a
// single inserted row, so readers never observe a half-written slot.
func (r *JobRepository) SetStageImage(ctx context.Context, jobID uint, stageIndex int, image []byte) error {
	stage := models.StageImage{
		JobID:      jobID,
		StageIndex: stageIndex,
		Image:      image,
	}
	if err := r.db.WithContext(ctx).Create(&stage).Error; err != nil {
		return fmt.Errorf("failed to set stage %d for job %d: %w", stageIndex, jobID, err)
	}
	return nil
}

// GetStageImage returns the bytes for one stage slot, or nil when the slot
// has not been filled yet. An empty slot is not an error.
func (r *JobRepository) GetStageImage(ctx context.Context, jobID uint, stageIndex int) ([]byte, error) {
	var stage models.StageImage
	err := r.db.WithContext(ctx).
		Where(&models.StageImage{JobID: jobID, StageIndex: stageIndex}).
		First(&stage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stage %d for job %d: %w", stageIndex, jobID, err)
	}
	return stage.Image, nil
}

// UpdateStatus moves a job out of processing. The WHERE clause keeps the
// transition monotonic: a job already completed or failed is never touched,
// and the call reports whether the transition happened.
func (r *JobRepository) UpdateStatus(ctx context.Context, id uint, status models.JobStatus, errMsg string) (bool, error) {
	if status != models.JobStatusCompleted && status != models.JobStatusFailed {
		return false, fmt.Errorf("invalid terminal status: %s", status)
	}
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobStatusProcessing).
		Updates(map[string]interface{}{
			models.JobStatusField: status,
			"error":               errMsg,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
