package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/decisiondesk/meetscribe/internal/meetings"
)

// Storage is the PostgreSQL-backed meetings.Store.
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

func (s *Storage) CreateMeeting(ctx context.Context, meeting meetings.Meeting) error {
	query := `
		INSERT INTO meetings (id, title, status, created_at, updated_at)
		VALUES (:id, :title, :status, :created_at, :updated_at)
	`

	if _, err := s.db.NamedExecContext(ctx, query, meeting); err != nil {
		return fmt.Errorf("failed to create meeting: %w", err)
	}

	return nil
}

func (s *Storage) FindMeeting(ctx context.Context, id string) (meetings.Meeting, error) {
	query := `
		SELECT id, title, status, created_at, updated_at
		FROM meetings
		WHERE id = $1
	`

	var meeting meetings.Meeting
	if err := s.db.GetContext(ctx, &meeting, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return meetings.Meeting{}, meetings.ErrMeetingNotFound
		}
		return meetings.Meeting{}, fmt.Errorf("failed to find meeting: %w", err)
	}

	return meeting, nil
}

func (s *Storage) UpdateStatus(ctx context.Context, id string, status meetings.Status) error {
	query := `
		UPDATE meetings
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update meeting status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return meetings.ErrMeetingNotFound
	}

	s.logger.Info("Meeting status updated",
		slog.String("meeting_id", id),
		slog.String("status", string(status)),
	)

	return nil
}

func (s *Storage) AddAudioAsset(ctx context.Context, asset meetings.AudioAsset) error {
	query := `
		INSERT INTO audio_assets (id, meeting_id, path, content_type, size_bytes, duration_sec, created_at)
		VALUES (:id, :meeting_id, :path, :content_type, :size_bytes, :duration_sec, :created_at)
	`

	if _, err := s.db.NamedExecContext(ctx, query, asset); err != nil {
		return fmt.Errorf("failed to add audio asset: %w", err)
	}

	return nil
}

func (s *Storage) LatestAudioAsset(ctx context.Context, meetingID string) (meetings.AudioAsset, error) {
	query := `
		SELECT id, meeting_id, path, content_type, size_bytes, duration_sec, created_at
		FROM audio_assets
		WHERE meeting_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var asset meetings.AudioAsset
	if err := s.db.GetContext(ctx, &asset, query, meetingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return meetings.AudioAsset{}, meetings.ErrNoAudio
		}
		return meetings.AudioAsset{}, fmt.Errorf("failed to find audio asset: %w", err)
	}

	return asset, nil
}

func (s *Storage) UpsertTranscript(ctx context.Context, transcript meetings.Transcript) error {
	query := `
		INSERT INTO transcripts (id, meeting_id, language, text, created_at)
		VALUES (:id, :meeting_id, :language, :text, :created_at)
		ON CONFLICT (meeting_id) DO UPDATE
		SET language = EXCLUDED.language,
		    text = EXCLUDED.text,
		    created_at = EXCLUDED.created_at
	`

	if _, err := s.db.NamedExecContext(ctx, query, transcript); err != nil {
		return fmt.Errorf("failed to upsert transcript: %w", err)
	}

	return nil
}

func (s *Storage) FindTranscript(ctx context.Context, meetingID string) (meetings.Transcript, error) {
	query := `
		SELECT id, meeting_id, language, text, created_at
		FROM transcripts
		WHERE meeting_id = $1
	`

	var transcript meetings.Transcript
	if err := s.db.GetContext(ctx, &transcript, query, meetingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return meetings.Transcript{}, meetings.ErrNoTranscript
		}
		return meetings.Transcript{}, fmt.Errorf("failed to find transcript: %w", err)
	}

	return transcript, nil
}

func (s *Storage) InsertUsage(ctx context.Context, record meetings.UsageRecord) error {
	query := `
		INSERT INTO usage_records (id, meeting_id, service, units, usd, brl, meta, created_at)
		VALUES (:id, :meeting_id, :service, :units, :usd, :brl, :meta, :created_at)
	`

	if _, err := s.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	return nil
}
