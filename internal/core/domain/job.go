package domain

import (
	"errors"
	"time"
)

type JobID string

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// AnonymousUser is the sentinel user id for jobs submitted without one.
const AnonymousUser = "anonymous"

// ProgressFailed is the progress sentinel recorded for a failed job.
const ProgressFailed = -1

// Job identifies one pipeline run for a single source URL and user.
type Job struct {
	ID          JobID      `json:"id"`
	UserID      string     `json:"user_id"`
	YoutubeURL  string     `json:"youtube_url"`
	Status      JobStatus  `json:"status"`
	ResultKey   *string    `json:"result_key,omitempty"` // object-storage key of the stored report
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether s is a final job status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Progress is one TTL-bound progress snapshot for a job.
type Progress struct {
	Percent   int       `json:"progress"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrJobNotFound = errors.New("job not found")

	// ErrContentNotFound means neither the caption provider nor the
	// transcript archive had content for the URL. Fatal to the job.
	ErrContentNotFound = errors.New("no caption content found for url")
)
