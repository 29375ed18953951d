package domain

import "time"

// JobStatus represents the processing state of a job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job is a request to grab the images of one listing into Folder.
type Job struct {
	ID        int64
	URL       string
	Folder    string
	Status    JobStatus
	Attempts  int
	Saved     int
	Total     int
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanRetry returns true if the job can be retried.
func (j *Job) CanRetry(maxAttempts int) bool {
	return j.Attempts < maxAttempts && j.Status != StatusCompleted
}

// Outcome is what a processor reports for a finished job.
type Outcome struct {
	Saved int
	Total int
}
