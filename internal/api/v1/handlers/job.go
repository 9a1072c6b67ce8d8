package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/shaggydog-ai/shaggydog/internal/api/v1/middleware"
	"github.com/shaggydog-ai/shaggydog/internal/db/models"
	"github.com/shaggydog-ai/shaggydog/internal/db/repos"
	"github.com/shaggydog-ai/shaggydog/internal/services"
)

// DefaultMaxUploadSize caps uploaded portraits at 5 MiB
const DefaultMaxUploadSize = 5 * 1024 * 1024

// allowedExtensions are the accepted upload file extensions
var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// JobHandler handles HTTP requests for job operations
type JobHandler struct {
	service       *services.Job
	pool          *services.Pool
	maxUploadSize int64
}

// NewJobHandler creates a new job handler instance
func NewJobHandler(s *services.Job, pool *services.Pool, maxUploadSize int64) *JobHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &JobHandler{service: s, pool: pool, maxUploadSize: maxUploadSize}
}

// SubmitJobResponse is returned after a successful submission
type SubmitJobResponse struct {
	JobID  uint             `json:"job_id"`
	Status models.JobStatus `json:"status"`
}

// JobSummary is the listing shape for one job
type JobSummary struct {
	ID        uint             `json:"id"`
	Breed     string           `json:"breed,omitempty"`
	Status    models.JobStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// JobDetail extends the summary with per-stage readiness so the gallery can
// render placeholders for stages that have not completed yet.
type JobDetail struct {
	JobSummary
	StageCount int             `json:"stage_count"`
	Stages     map[string]bool `json:"stages"`
}

// SubmitJob handles the request to upload a portrait and start a
// transformation job. The response is returned as soon as the job record is
// durable; generation continues on the worker pool.
func (h *JobHandler) SubmitJob(c *fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return errResponse(c, fiber.StatusBadRequest, ErrMsgNoImageProvided)
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(fileHeader.Filename))] {
		return errResponse(c, fiber.StatusBadRequest, ErrMsgInvalidFileType)
	}
	if fileHeader.Size > h.maxUploadSize {
		return errResponse(c, fiber.StatusBadRequest, ErrMsgFileTooLarge)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return errResponse(c, fiber.StatusBadRequest, ErrMsgNoImageProvided)
	}
	defer func() { _ = file.Close() }()

	image, err := io.ReadAll(file)
	if err != nil || len(image) == 0 {
		return errResponse(c, fiber.StatusBadRequest, ErrMsgNoImageProvided)
	}
	if !strings.HasPrefix(http.DetectContentType(image), "image/") {
		return errResponse(c, fiber.StatusBadRequest, ErrMsgNotAnImage)
	}

	job, err := h.service.Submit(c.Context(), ownerID, image)
	if err != nil {
		return errResponse(c, fiber.StatusInternalServerError, ErrMsgSubmitJobFailed)
	}

	// The pipeline outlives this request; hand it a fresh context.
	h.pool.Enqueue(context.Background(), job.ID)

	return c.Status(fiber.StatusAccepted).JSON(SubmitJobResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// ListJobs handles the request to list the caller's jobs, newest first
func (h *JobHandler) ListJobs(c *fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)

	opts := &models.ListOptions{
		Limit:  c.QueryInt("limit", models.DefaultLimit),
		Offset: c.QueryInt("offset", 0),
	}
	jobs, err := h.service.List(c.Context(), ownerID, opts)
	if err != nil {
		return errResponse(c, fiber.StatusInternalServerError, ErrMsgListJobsFailed)
	}

	summaries := make([]JobSummary, len(jobs))
	for i, job := range jobs {
		summaries[i] = JobSummary{
			ID:        job.ID,
			Breed:     job.Breed,
			Status:    job.Status,
			CreatedAt: job.CreatedAt,
		}
	}
	return c.JSON(summaries)
}

// GetJob handles the request to get one job with per-stage readiness
func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)
	jobID, err := parseJobID(c)
	if err != nil {
		return errResponse(c, fiber.StatusBadRequest, ErrMsgJobIDRequired)
	}

	job, err := h.service.Get(c.Context(), ownerID, jobID)
	if err != nil {
		return jobError(c, err)
	}

	stages := map[string]bool{"original": true}
	for i := 0; i < job.StageCount; i++ {
		stages[models.StageName(i, job.StageCount)] = false
	}
	for _, stage := range job.Stages {
		stages[models.StageName(stage.StageIndex, job.StageCount)] = true
	}

	return c.JSON(JobDetail{
		JobSummary: JobSummary{
			ID:        job.ID,
			Breed:     job.Breed,
			Status:    job.Status,
			CreatedAt: job.CreatedAt,
		},
		StageCount: job.StageCount,
		Stages:     stages,
	})
}

// GetStageImage handles the request to fetch the bytes of one stage. A stage
// that has not completed yet yields 204 so the gallery can render a
// placeholder instead of an error.
func (h *JobHandler) GetStageImage(c *fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)
	jobID, err := parseJobID(c)
	if err != nil {
		return errResponse(c, fiber.StatusBadRequest, ErrMsgJobIDRequired)
	}

	data, err := h.service.StageBytes(c.Context(), ownerID, jobID, c.Params("stage"))
	if errors.Is(err, services.ErrInvalidStage) {
		return errResponse(c, fiber.StatusBadRequest, ErrMsgInvalidStageName)
	}
	if err != nil {
		return jobError(c, err)
	}
	if len(data) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}

	c.Set(fiber.HeaderContentType, http.DetectContentType(data))
	return c.Send(data)
}

func parseJobID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func jobError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, repos.ErrJobNotFound):
		return errResponse(c, fiber.StatusNotFound, ErrMsgJobNotFound)
	case errors.Is(err, repos.ErrForbidden):
		return errResponse(c, fiber.StatusForbidden, ErrMsgJobForbidden)
	default:
		return errResponse(c, fiber.StatusInternalServerError, ErrMsgGetJobFailed)
	}
}
