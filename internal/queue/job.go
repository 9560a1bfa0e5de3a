package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a transcription queue job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusAccepted   JobStatus = "ACCEPTED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusCancelled  JobStatus = "CANCELLED"
)

// IsTerminal reports whether the status is final. FAILED is not terminal
// here because failed jobs remain eligible for the retry sweep until the
// retry budget runs out.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

// CancelledByUser is the error message stored on cancelled jobs.
const CancelledByUser = "Cancelled by user"

// Job is one unit of deferred transcription work. Values are immutable:
// every transition returns a new Job so timestamps and retry counts stay
// reconstructable from the audit trail.
type Job struct {
	ID                string     `db:"id"`
	MeetingID         string     `db:"meeting_id"`
	AudioPath         string     `db:"audio_path"`
	Model             string     `db:"model"`
	Language          string     `db:"language"`
	EnableDiarization bool       `db:"enable_diarization"`
	Status            JobStatus  `db:"status"`
	AcceptedAt        *time.Time `db:"accepted_at"`
	CompletedAt       *time.Time `db:"completed_at"`
	ErrorMessage      string     `db:"error_message"`
	RetryCount        int        `db:"retry_count"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// NewJob creates a PENDING job for a meeting.
func NewJob(meetingID, audioPath, model, language string, enableDiarization bool) Job {
	now := time.Now().UTC()
	return Job{
		ID:                uuid.New().String(),
		MeetingID:         meetingID,
		AudioPath:         audioPath,
		Model:             model,
		Language:          language,
		EnableDiarization: enableDiarization,
		Status:            JobStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Accept marks the job as claimed by a worker and stamps AcceptedAt.
func (j Job) Accept() Job {
	now := time.Now().UTC()
	j.Status = JobStatusAccepted
	j.AcceptedAt = &now
	j.UpdatedAt = now
	return j
}

// StartProcessing moves an accepted job into PROCESSING.
func (j Job) StartProcessing() Job {
	j.Status = JobStatusProcessing
	j.UpdatedAt = time.Now().UTC()
	return j
}

// Complete marks the job as done, stamps CompletedAt, and clears any error.
func (j Job) Complete() Job {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.ErrorMessage = ""
	j.UpdatedAt = now
	return j
}

// Fail records an error message and increments the retry count.
func (j Job) Fail(message string) Job {
	j.Status = JobStatusFailed
	j.ErrorMessage = message
	j.RetryCount++
	j.UpdatedAt = time.Now().UTC()
	return j
}

// Cancel marks the job as cancelled by the user.
func (j Job) Cancel() Job {
	j.Status = JobStatusCancelled
	j.ErrorMessage = CancelledByUser
	j.UpdatedAt = time.Now().UTC()
	return j
}

// Retry resets a failed job back to PENDING. The retry count is incremented
// again on top of the increment Fail already applied, so one failed attempt
// consumes two units of the retry budget. That matches the deployed
// behavior and is pinned by tests; do not "fix" it without adjusting
// max_retries accordingly.
func (j Job) Retry() Job {
	j.Status = JobStatusPending
	j.AcceptedAt = nil
	j.CompletedAt = nil
	j.ErrorMessage = ""
	j.RetryCount++
	j.UpdatedAt = time.Now().UTC()
	return j
}

// CanRetry reports whether the job is FAILED with budget remaining.
func (j Job) CanRetry(maxRetries int) bool {
	return j.Status == JobStatusFailed && j.RetryCount < maxRetries
}
