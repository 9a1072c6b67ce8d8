package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Field names for job model
const (
	// JobCreatedAtField is the database field name for the job creation timestamp
	JobCreatedAtField = "created_at"
	// JobStatusField is the field name for job status
	JobStatusField = "status"
)

// DefaultStageCount is the number of generated images per job: two
// transitions plus the final breed portrait.
const DefaultStageCount = 3

// JobStatus represents the current state of a transformation job
type JobStatus string

// Job status constants
const (
	// JobStatusUnknown represents an unknown or invalid job status
	JobStatusUnknown JobStatus = "unknown"
	// JobStatusProcessing indicates the generation pipeline has not finished
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates every stage image was generated
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates detection or at least one stage failed
	JobStatusFailed JobStatus = "failed"
)

// String returns the string representation of the job status
func (s JobStatus) String() string {
	return string(s)
}

// ParseJobStatus converts a string to a JobStatus type
func ParseJobStatus(str string) (JobStatus, error) {
	switch str {
	case string(JobStatusProcessing):
		return JobStatusProcessing, nil
	case string(JobStatusCompleted):
		return JobStatusCompleted, nil
	case string(JobStatusFailed):
		return JobStatusFailed, nil
	default:
		return JobStatusUnknown, fmt.Errorf("invalid job status: %s", str)
	}
}

// UnmarshalJSON implements json.Unmarshaler for JobStatus
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status, err := ParseJobStatus(str)
	if err != nil {
		return err
	}

	*s = status
	return nil
}

// MarshalJSON implements json.Marshaler for JobStatus
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Job represents one user-submitted transformation request and its
// accumulated state. The original image is immutable once set; stage images
// are attached one row at a time as each generation completes.
type Job struct {
	gorm.Model
	OwnerID       uint         `json:"owner_id" gorm:"not null;index"` // ID from the users table
	Breed         string       `json:"breed,omitempty" gorm:"index"`
	OriginalImage []byte       `json:"-" gorm:"not null"`
	StageCount    int          `json:"stage_count" gorm:"not null"`
	Status        JobStatus    `json:"status" gorm:"not null;index"`
	Error         string       `json:"-" gorm:"type:text"` // operator detail, never exposed over the API
	Stages        []StageImage `json:"-" gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time    `json:"created_at" gorm:"index"`
}

// MarshalJSON implements the json.Marshaler interface for Job
func (j Job) MarshalJSON() ([]byte, error) {
	type Alias Job // Create an alias to avoid infinite recursion
	return json.Marshal(Alias(j))
}

// Validate ensures that the job data is valid
func (j *Job) Validate() error {
	if j.OwnerID == 0 {
		return fmt.Errorf("job owner_id cannot be 0")
	}
	if len(j.OriginalImage) == 0 {
		return fmt.Errorf("job original image cannot be empty")
	}
	if j.StageCount < 2 {
		return fmt.Errorf("job stage count must be at least 2")
	}
	return nil
}

// BeforeCreate is a GORM hook that runs before creating a new job
func (j *Job) BeforeCreate(_ *gorm.DB) error {
	if j.Status == "" {
		j.Status = JobStatusProcessing
	}
	return j.Validate()
}

// StageImage holds the generated image for a single stage slot of a job.
// Absence of a row means the slot is still empty.
type StageImage struct {
	gorm.Model
	JobID      uint   `json:"job_id" gorm:"not null;uniqueIndex:idx_job_stage"`
	StageIndex int    `json:"stage_index" gorm:"not null;uniqueIndex:idx_job_stage"`
	Image      []byte `json:"-" gorm:"not null"`
}

// StageName returns the API name of a stage slot: transitions are numbered
// from 1 and the last slot is the final breed portrait.
func StageName(stageIndex, stageCount int) string {
	if stageIndex == stageCount-1 {
		return "final"
	}
	return fmt.Sprintf("transition%d", stageIndex+1)
}

// StageIndexForName resolves an API stage name back to its slot index.
// The name "original" is handled by the caller; it is not a generated slot.
func StageIndexForName(name string, stageCount int) (int, error) {
	if name == "final" {
		return stageCount - 1, nil
	}
	if rest, ok := strings.CutPrefix(name, "transition"); ok {
		// The whole suffix must be the plain decimal slot number; reject
		// trailing garbage, signs and leading zeros.
		n, err := strconv.Atoi(rest)
		if err == nil && rest == strconv.Itoa(n) && n >= 1 && n <= stageCount-1 {
			return n - 1, nil
		}
	}
	return 0, fmt.Errorf("invalid stage name: %s", name)
}
