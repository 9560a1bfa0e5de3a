package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// EventPublisher fans out job lifecycle events so desktop workers can wake
// up instead of tight-polling. shared/rabbitmq.Client satisfies this.
type EventPublisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// JobEvent is the message published on job lifecycle changes.
type JobEvent struct {
	Event     string    `json:"event"`
	JobID     string    `json:"job_id"`
	MeetingID string    `json:"meeting_id"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Service manages the desktop transcription queue. Jobs are enqueued when a
// meeting selects the desktop provider; the desktop app polls for pending
// jobs, downloads audio, processes, and posts the result back.
//
// Every mutation re-reads the job by meeting id immediately before writing.
// The store is the only arbiter between this service and the reconciler's
// sweeps, which run concurrently.
type Service struct {
	store      Store
	publisher  EventPublisher
	maxRetries int
	logger     *slog.Logger
}

// NewService creates a queue service. publisher may be nil, which disables
// event fan-out.
func NewService(store Store, publisher EventPublisher, maxRetries int, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		publisher:  publisher,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Enqueue adds a PENDING job for the meeting. Idempotent: if the meeting
// already has a job in the queue, nothing is created and no error is
// returned. Non-terminal jobs never coexist for one meeting.
func (s *Service) Enqueue(ctx context.Context, job Job) error {
	existing, err := s.store.FindByMeetingID(ctx, job.MeetingID)
	if err == nil {
		s.logger.Warn("Meeting already in queue",
			slog.String("meeting_id", job.MeetingID),
			slog.String("status", string(existing.Status)),
		)
		return nil
	}
	if !errors.Is(err, ErrJobNotFound) {
		return fmt.Errorf("failed to check queue for meeting: %w", err)
	}

	if err := s.store.Insert(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.logger.Info("Job queued for desktop",
		slog.String("meeting_id", job.MeetingID),
		slog.String("model", job.Model),
	)

	s.publishEvent(ctx, "job.queued", job)
	return nil
}

// PendingJobs returns all PENDING jobs, oldest first.
func (s *Service) PendingJobs(ctx context.Context) ([]Job, error) {
	return s.store.FindPending(ctx)
}

// GetJob returns the job for a meeting.
func (s *Service) GetJob(ctx context.Context, meetingID string) (Job, error) {
	return s.store.FindByMeetingID(ctx, meetingID)
}

// MarkAccepted transitions a PENDING job to PROCESSING on behalf of a
// worker claim. Accepting a job in any other status is logged and ignored;
// a retried client request must not double-claim.
func (s *Service) MarkAccepted(ctx context.Context, meetingID string) error {
	job, err := s.store.FindByMeetingID(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("failed to accept job: %w", err)
	}

	if job.Status != JobStatusPending {
		s.logger.Warn("Attempted to accept job not in PENDING",
			slog.String("meeting_id", meetingID),
			slog.String("status", string(job.Status)),
		)
		return nil
	}

	if err := s.store.Update(ctx, job.Accept().StartProcessing()); err != nil {
		return fmt.Errorf("failed to accept job: %w", err)
	}

	s.logger.Info("Job accepted by desktop", slog.String("meeting_id", meetingID))
	return nil
}

// MarkCompleted finishes the job and deletes it immediately. Successful
// jobs do not linger for inspection the way failed ones do.
func (s *Service) MarkCompleted(ctx context.Context, meetingID string) error {
	job, err := s.store.FindByMeetingID(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	completed := job.Complete()
	if err := s.store.Update(ctx, completed); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	s.logger.Info("Job completed by desktop", slog.String("meeting_id", meetingID))
	s.publishEvent(ctx, "job.completed", completed)

	if err := s.store.Delete(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to delete completed job: %w", err)
	}

	return nil
}

// MarkFailed records a failure reported by the worker. The retry sweep will
// reset the job to PENDING while the budget lasts.
func (s *Service) MarkFailed(ctx context.Context, meetingID, errorMessage string) error {
	job, err := s.store.FindByMeetingID(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	failed := job.Fail(errorMessage)
	if err := s.store.Update(ctx, failed); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	s.logger.Error("Job failed on desktop",
		slog.String("meeting_id", meetingID),
		slog.String("error", errorMessage),
		slog.Int("retry_count", failed.RetryCount),
	)

	if failed.CanRetry(s.maxRetries) {
		s.logger.Info("Job will be retried automatically",
			slog.String("meeting_id", meetingID),
		)
	} else {
		s.logger.Warn("Job exceeded max retries",
			slog.String("meeting_id", meetingID),
			slog.Int("max_retries", s.maxRetries),
		)
	}

	s.publishEvent(ctx, "job.failed", failed)
	return nil
}

// Cancel cancels a job regardless of its current status and deletes it
// immediately. Fails fast when the job is missing, since completion deletes
// the record first.
func (s *Service) Cancel(ctx context.Context, meetingID string) error {
	job, err := s.store.FindByMeetingID(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}

	cancelled := job.Cancel()
	if err := s.store.Update(ctx, cancelled); err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}

	s.logger.Info("Job cancelled", slog.String("meeting_id", meetingID))
	s.publishEvent(ctx, "job.cancelled", cancelled)

	if err := s.store.Delete(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to delete cancelled job: %w", err)
	}

	return nil
}

// Stats returns the number of jobs per lifecycle status.
func (s *Service) Stats(ctx context.Context) (map[JobStatus]int, error) {
	statuses := []JobStatus{
		JobStatusPending,
		JobStatusAccepted,
		JobStatusProcessing,
		JobStatusCompleted,
		JobStatusFailed,
		JobStatusCancelled,
	}

	stats := make(map[JobStatus]int, len(statuses))
	for _, status := range statuses {
		count, err := s.store.CountByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s jobs: %w", status, err)
		}
		stats[status] = count
	}
	return stats, nil
}

// publishEvent is best-effort: a broker outage must never fail a queue
// operation.
func (s *Service) publishEvent(ctx context.Context, event string, job Job) {
	if s.publisher == nil {
		return
	}

	body, err := json.Marshal(JobEvent{
		Event:     event,
		JobID:     job.ID,
		MeetingID: job.MeetingID,
		Status:    job.Status,
		Error:     job.ErrorMessage,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("Failed to marshal job event",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := s.publisher.Publish(ctx, body, "application/json"); err != nil {
		s.logger.Warn("Failed to publish job event",
			slog.String("event", event),
			slog.String("meeting_id", job.MeetingID),
			slog.String("error", err.Error()),
		)
	}
}
