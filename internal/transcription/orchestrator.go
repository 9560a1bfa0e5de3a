package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/decisiondesk/meetscribe/internal/meetings"
	"github.com/decisiondesk/meetscribe/internal/queue"
)

var (
	// ErrProviderUnavailable is returned when the selected provider kind
	// has no configured backend.
	ErrProviderUnavailable = errors.New("provider is not configured")

	// ErrUsageMetadata is returned when usage provenance metadata could
	// not be serialized.
	ErrUsageMetadata = errors.New("failed to serialize transcription usage metadata")
)

// Orchestrator drives a meeting through transcription: it validates
// preconditions, routes to a provider, persists the transcript and usage,
// and keeps the meeting status consistent with the outcome.
type Orchestrator struct {
	store           meetings.Store
	queue           *queue.Service
	router          *Router
	estimator       *Estimator
	defaultLanguage string
	logger          *slog.Logger
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(store meetings.Store, queueSvc *queue.Service, router *Router,
	estimator *Estimator, defaultLanguage string, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:           store,
		queue:           queueSvc,
		router:          router,
		estimator:       estimator,
		defaultLanguage: defaultLanguage,
		logger:          logger,
	}
}

// Transcribe runs transcription with the default provider options.
func (o *Orchestrator) Transcribe(ctx context.Context, meetingID string) (meetings.Status, error) {
	return o.TranscribeWith(ctx, meetingID, DefaultOptions())
}

// TranscribeWith runs transcription with explicit options.
//
// For the synchronous kinds the call blocks on exactly one provider
// invocation and returns DONE or an error; the meeting is never left at
// PROCESSING once this returns. For the desktop kind a queue job is created
// and PROCESSING is returned immediately; the desktop worker or the
// reconciler resolves it later.
func (o *Orchestrator) TranscribeWith(ctx context.Context, meetingID string, opts Options) (meetings.Status, error) {
	o.logger.Info("Transcribing meeting",
		slog.String("meeting_id", meetingID),
		slog.String("provider", string(opts.Provider)),
		slog.String("model", opts.Model),
		slog.Bool("diarization", opts.EnableDiarization),
	)

	if _, err := o.store.FindMeeting(ctx, meetingID); err != nil {
		return "", err
	}

	asset, err := o.store.LatestAudioAsset(ctx, meetingID)
	if err != nil {
		return "", err
	}

	if opts.Provider == KindDesktopLocal {
		return o.queueForDesktop(ctx, meetingID, asset, opts)
	}
	return o.transcribeSync(ctx, meetingID, asset, opts)
}

// transcribeSync handles the remote_openai and server_local paths.
func (o *Orchestrator) transcribeSync(ctx context.Context, meetingID string, asset meetings.AudioAsset, opts Options) (meetings.Status, error) {
	provider := o.router.Provider(opts.Provider)
	if provider == nil {
		return "", fmt.Errorf("%s: %w", opts.Provider, ErrProviderUnavailable)
	}

	// The in-progress signal lands before the provider call so a crash
	// mid-call still reads as PROCESSING.
	if err := o.store.UpdateStatus(ctx, meetingID, meetings.StatusProcessing); err != nil {
		return "", err
	}

	result, err := provider.Transcribe(ctx, Request{
		AudioPath:         asset.Path,
		Filename:          filepath.Base(asset.Path),
		ContentType:       contentTypeFor(asset),
		Language:          o.defaultLanguage,
		Model:             opts.Model,
		EnableDiarization: opts.EnableDiarization,
	})
	if err != nil {
		o.failMeeting(ctx, meetingID)
		return "", err
	}

	language := result.Language
	if language == "" {
		language = o.defaultLanguage
	}

	if err := o.store.UpsertTranscript(ctx, meetings.Transcript{
		ID:        uuid.New().String(),
		MeetingID: meetingID,
		Language:  language,
		Text:      result.Text,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		o.failMeeting(ctx, meetingID)
		return "", err
	}

	record, err := o.buildUsageRecord(meetingID, opts, result)
	if err != nil {
		o.failMeeting(ctx, meetingID)
		return "", err
	}

	if err := o.store.InsertUsage(ctx, record); err != nil {
		o.failMeeting(ctx, meetingID)
		return "", err
	}

	if err := o.store.UpdateStatus(ctx, meetingID, meetings.StatusDone); err != nil {
		return "", err
	}
	return meetings.StatusDone, nil
}

// queueForDesktop creates a queue job and returns PROCESSING without
// blocking. Enqueuing is idempotent per meeting.
func (o *Orchestrator) queueForDesktop(ctx context.Context, meetingID string, asset meetings.AudioAsset, opts Options) (meetings.Status, error) {
	if o.queue == nil {
		return "", fmt.Errorf("%s: %w", KindDesktopLocal, ErrProviderUnavailable)
	}

	if err := o.store.UpdateStatus(ctx, meetingID, meetings.StatusProcessing); err != nil {
		return "", err
	}

	job := queue.NewJob(meetingID, asset.Path, opts.Model, o.defaultLanguage, opts.EnableDiarization)
	if err := o.queue.Enqueue(ctx, job); err != nil {
		o.failMeeting(ctx, meetingID)
		return "", err
	}

	o.logger.Info("Meeting queued for desktop transcription", slog.String("meeting_id", meetingID))
	return meetings.StatusProcessing, nil
}

func (o *Orchestrator) buildUsageRecord(meetingID string, opts Options, result *Result) (meetings.UsageRecord, error) {
	var (
		estimate Estimate
		meta     any
	)

	switch opts.Provider {
	case KindRemoteOpenAI:
		estimate = o.estimator.EstimateFromSeconds(result.DurationSeconds)
		meta = remoteUsageMeta{
			Provider:        string(opts.Provider),
			ResponseID:      result.ResponseID,
			Model:           result.Model,
			DurationSeconds: result.DurationSeconds,
			MinutesBilled:   estimate.MinutesBilled,
		}
	default:
		minutes := decimal.NewFromFloat(result.DurationSeconds).
			DivRound(secondsPerMinute, monetaryScale)
		estimate = ZeroCost(minutes)
		meta = localUsageMeta{
			Provider:         string(opts.Provider),
			Model:            opts.Model,
			DurationSeconds:  result.DurationSeconds,
			Diarization:      opts.EnableDiarization,
			ProcessingTimeMs: result.ProcessingTimeMs,
		}
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return meetings.UsageRecord{}, fmt.Errorf("%w: %v", ErrUsageMetadata, err)
	}

	return meetings.UsageRecord{
		ID:        uuid.New().String(),
		MeetingID: meetingID,
		Service:   meetings.ServiceWhisper,
		Units:     estimate.MinutesBilled,
		USD:       estimate.USD,
		BRL:       estimate.BRL,
		Meta:      string(metaJSON),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// failMeeting forces the meeting out of PROCESSING on any synchronous-path
// failure. The update error is only logged; the original failure wins.
func (o *Orchestrator) failMeeting(ctx context.Context, meetingID string) {
	if err := o.store.UpdateStatus(ctx, meetingID, meetings.StatusError); err != nil {
		o.logger.Error("Failed to mark meeting as errored",
			slog.String("meeting_id", meetingID),
			slog.String("error", err.Error()),
		)
	}
}

func contentTypeFor(asset meetings.AudioAsset) string {
	if asset.ContentType != "" {
		return asset.ContentType
	}
	return mime.TypeByExtension(filepath.Ext(asset.Path))
}

type remoteUsageMeta struct {
	Provider        string          `json:"provider"`
	ResponseID      string          `json:"responseId"`
	Model           string          `json:"model"`
	DurationSeconds float64         `json:"durationSeconds"`
	MinutesBilled   decimal.Decimal `json:"minutesBilled"`
}

type localUsageMeta struct {
	Provider         string  `json:"provider"`
	Model            string  `json:"model"`
	DurationSeconds  float64 `json:"durationSeconds"`
	Diarization      bool    `json:"diarization"`
	ProcessingTimeMs int64   `json:"processingTimeMs"`
}
