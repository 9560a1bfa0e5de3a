// Package meetings holds the meeting aggregate and the persistence
// contracts the transcription paths write through.
package meetings

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the externally visible transcription state of a meeting.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusProcessing Status = "PROCESSING"
	StatusDone       Status = "DONE"
	StatusError      Status = "ERROR"
)

var (
	// ErrMeetingNotFound is returned when the meeting does not exist.
	ErrMeetingNotFound = errors.New("meeting not found")

	// ErrNoAudio is returned when a meeting has no stored audio asset to
	// transcribe.
	ErrNoAudio = errors.New("meeting has no audio to transcribe")

	// ErrNoTranscript is returned when a meeting has not been transcribed
	// yet.
	ErrNoTranscript = errors.New("meeting has no transcript")
)

// Meeting is the aggregate whose status projects transcription outcomes.
type Meeting struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Status    Status    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// AudioAsset is one uploaded recording for a meeting.
type AudioAsset struct {
	ID          string    `db:"id"`
	MeetingID   string    `db:"meeting_id"`
	Path        string    `db:"path"`
	ContentType string    `db:"content_type"`
	SizeBytes   int64     `db:"size_bytes"`
	DurationSec *int      `db:"duration_sec"`
	CreatedAt   time.Time `db:"created_at"`
}

// Transcript is the full text for a meeting, keyed uniquely by meeting id.
// Re-transcribing replaces the previous text.
type Transcript struct {
	ID        string    `db:"id"`
	MeetingID string    `db:"meeting_id"`
	Language  string    `db:"language"`
	Text      string    `db:"text"`
	CreatedAt time.Time `db:"created_at"`
}

// Usage-producing services.
const (
	ServiceWhisper = "WHISPER"
	ServiceGPT     = "GPT"
)

// UsageRecord is one append-only ledger entry for billable units charged
// against a meeting. Never mutated once written; cost views are a fold over
// all records for the meeting.
type UsageRecord struct {
	ID        string          `db:"id"`
	MeetingID string          `db:"meeting_id"`
	Service   string          `db:"service"`
	Units     decimal.Decimal `db:"units"`
	USD       decimal.Decimal `db:"usd"`
	BRL       decimal.Decimal `db:"brl"`
	Meta      string          `db:"meta"`
	CreatedAt time.Time       `db:"created_at"`
}
