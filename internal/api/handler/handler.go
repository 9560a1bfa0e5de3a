package handler

import (
	"log/slog"

	"github.com/decisiondesk/meetscribe/internal/ai"
	"github.com/decisiondesk/meetscribe/internal/meetings"
	"github.com/decisiondesk/meetscribe/internal/queue"
	"github.com/decisiondesk/meetscribe/internal/transcription"
	"github.com/decisiondesk/meetscribe/shared/postgresql"
	"github.com/decisiondesk/meetscribe/shared/rabbitmq"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	DBClient     *postgresql.Client // nil when running on in-memory stores
	Events       *rabbitmq.Client   // nil when event publishing is disabled
	Meetings     meetings.Store
	Queue        *queue.Service
	Orchestrator *transcription.Orchestrator
	Extraction   *ai.ExtractionService

	// DataDir is where uploaded audio is stored.
	DataDir string

	// DefaultOptions seed transcription requests when the client omits a
	// provider or model.
	DefaultOptions transcription.Options

	// DefaultAIProvider is the completion provider used when an extraction
	// request does not name one.
	DefaultAIProvider string
}
