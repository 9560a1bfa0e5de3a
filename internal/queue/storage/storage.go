package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/decisiondesk/meetscribe/internal/queue"
)

// Storage is the PostgreSQL-backed queue.Store.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance.
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

const jobColumns = `
	id, meeting_id, audio_path, model, language, enable_diarization,
	status, accepted_at, completed_at, error_message, retry_count,
	created_at, updated_at
`

func (s *Storage) Insert(ctx context.Context, job queue.Job) error {
	query := `
		INSERT INTO transcription_queue (
			id, meeting_id, audio_path, model, language, enable_diarization,
			status, accepted_at, completed_at, error_message, retry_count,
			created_at, updated_at
		) VALUES (
			:id, :meeting_id, :audio_path, :model, :language, :enable_diarization,
			:status, :accepted_at, :completed_at, :error_message, :retry_count,
			:created_at, :updated_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	s.logger.Info("Job inserted",
		slog.String("job_id", job.ID),
		slog.String("meeting_id", job.MeetingID),
	)

	return nil
}

func (s *Storage) Update(ctx context.Context, job queue.Job) error {
	query := `
		UPDATE transcription_queue
		SET status = :status,
		    accepted_at = :accepted_at,
		    completed_at = :completed_at,
		    error_message = :error_message,
		    retry_count = :retry_count,
		    updated_at = :updated_at
		WHERE id = :id
	`

	result, err := s.db.NamedExecContext(ctx, query, job)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return queue.ErrJobNotFound
	}

	return nil
}

func (s *Storage) FindByMeetingID(ctx context.Context, meetingID string) (queue.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM transcription_queue WHERE meeting_id = $1`

	var job queue.Job
	if err := s.db.GetContext(ctx, &job, query, meetingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return queue.Job{}, queue.ErrJobNotFound
		}
		return queue.Job{}, fmt.Errorf("failed to find job by meeting id: %w", err)
	}

	return job, nil
}

func (s *Storage) FindByID(ctx context.Context, id string) (queue.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM transcription_queue WHERE id = $1`

	var job queue.Job
	if err := s.db.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return queue.Job{}, queue.ErrJobNotFound
		}
		return queue.Job{}, fmt.Errorf("failed to find job by id: %w", err)
	}

	return job, nil
}

func (s *Storage) FindPending(ctx context.Context) ([]queue.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM transcription_queue
		WHERE status = $1
		ORDER BY created_at
	`

	var jobs []queue.Job
	if err := s.db.SelectContext(ctx, &jobs, query, queue.JobStatusPending); err != nil {
		return nil, fmt.Errorf("failed to find pending jobs: %w", err)
	}

	return jobs, nil
}

func (s *Storage) FindRetryable(ctx context.Context, maxRetries int) ([]queue.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM transcription_queue
		WHERE status = $1 AND retry_count < $2
		ORDER BY created_at
	`

	var jobs []queue.Job
	if err := s.db.SelectContext(ctx, &jobs, query, queue.JobStatusFailed, maxRetries); err != nil {
		return nil, fmt.Errorf("failed to find retryable jobs: %w", err)
	}

	return jobs, nil
}

func (s *Storage) FindTimedOut(ctx context.Context, before time.Time) ([]queue.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM transcription_queue
		WHERE status IN ($1, $2) AND accepted_at < $3
		ORDER BY accepted_at
	`

	var jobs []queue.Job
	err := s.db.SelectContext(ctx, &jobs, query,
		queue.JobStatusAccepted, queue.JobStatusProcessing, before)
	if err != nil {
		return nil, fmt.Errorf("failed to find timed-out jobs: %w", err)
	}

	return jobs, nil
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM transcription_queue WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	return nil
}

func (s *Storage) DeleteCompletedBefore(ctx context.Context, before time.Time) (int, error) {
	query := `
		DELETE FROM transcription_queue
		WHERE status IN ($1, $2) AND completed_at < $3
	`

	result, err := s.db.ExecContext(ctx, query,
		queue.JobStatusCompleted, queue.JobStatusCancelled, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete completed jobs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

func (s *Storage) CountByStatus(ctx context.Context, status queue.JobStatus) (int, error) {
	query := `SELECT COUNT(*) FROM transcription_queue WHERE status = $1`

	var count int
	if err := s.db.GetContext(ctx, &count, query, status); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	return count, nil
}
