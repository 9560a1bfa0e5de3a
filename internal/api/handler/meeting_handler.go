package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/decisiondesk/meetscribe/internal/ai"
	"github.com/decisiondesk/meetscribe/internal/api/dto"
	"github.com/decisiondesk/meetscribe/internal/meetings"
	"github.com/decisiondesk/meetscribe/internal/transcription"
)

// MeetingHandler handles meeting-related HTTP requests
type MeetingHandler struct {
	logger       *slog.Logger
	store        meetings.Store
	orchestrator *transcription.Orchestrator
	extraction   *ai.ExtractionService
	dataDir      string
	defaults     transcription.Options
	aiProvider   string
}

// NewMeetingHandler creates a new MeetingHandler instance
func NewMeetingHandler(deps *Dependencies) *MeetingHandler {
	return &MeetingHandler{
		logger:       deps.Logger,
		store:        deps.Meetings,
		orchestrator: deps.Orchestrator,
		extraction:   deps.Extraction,
		dataDir:      deps.DataDir,
		defaults:     deps.DefaultOptions,
		aiProvider:   deps.DefaultAIProvider,
	}
}

// CreateMeeting handles POST /api/v1/meetings
func (h *MeetingHandler) CreateMeeting(c *gin.Context) {
	var req dto.CreateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	now := time.Now().UTC()
	meeting := meetings.Meeting{
		ID:        uuid.New().String(),
		Title:     req.Title,
		Status:    meetings.StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.store.CreateMeeting(c.Request.Context(), meeting); err != nil {
		h.logger.Error("Failed to create meeting", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create meeting",
		})
		return
	}

	h.logger.Info("Meeting created",
		slog.String("meeting_id", meeting.ID),
		slog.String("title", meeting.Title),
	)

	c.JSON(http.StatusCreated, meetingResponse(meeting))
}

// GetMeeting handles GET /api/v1/meetings/:meeting_id
func (h *MeetingHandler) GetMeeting(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}

	meeting, err := h.store.FindMeeting(c.Request.Context(), meetingID)
	if err != nil {
		if errors.Is(err, meetings.ErrMeetingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Meeting not found",
			})
			return
		}
		h.logger.Error("Failed to get meeting", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get meeting",
		})
		return
	}

	c.JSON(http.StatusOK, meetingResponse(meeting))
}

// UploadAudio handles POST /api/v1/meetings/:meeting_id/audio
// Accepts a multipart upload and stores the file under the data directory.
func (h *MeetingHandler) UploadAudio(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}

	if _, err := h.store.FindMeeting(c.Request.Context(), meetingID); err != nil {
		if errors.Is(err, meetings.ErrMeetingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Meeting not found",
			})
			return
		}
		h.logger.Error("Failed to get meeting", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get meeting",
		})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Audio file is required",
		})
		return
	}

	dst := filepath.Join(h.dataDir, fmt.Sprintf("%s%s", meetingID, filepath.Ext(file.Filename)))
	if err := c.SaveUploadedFile(file, dst); err != nil {
		h.logger.Error("Failed to save audio file",
			slog.String("meeting_id", meetingID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to save audio file",
		})
		return
	}

	asset := meetings.AudioAsset{
		ID:          uuid.New().String(),
		MeetingID:   meetingID,
		Path:        dst,
		ContentType: file.Header.Get("Content-Type"),
		SizeBytes:   file.Size,
		CreatedAt:   time.Now().UTC(),
	}

	// A size-based estimate until a provider reports real timing. Billing
	// never reads it; unreported durations bill the one-minute minimum.
	if approx := int(transcription.ApproxDurationFromSize(file.Size)); approx > 0 {
		asset.DurationSec = &approx
	}

	if err := h.store.AddAudioAsset(c.Request.Context(), asset); err != nil {
		h.logger.Error("Failed to record audio asset", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to record audio asset",
		})
		return
	}

	h.logger.Info("Audio uploaded",
		slog.String("meeting_id", meetingID),
		slog.Int64("size_bytes", file.Size),
	)

	c.JSON(http.StatusOK, dto.UploadAudioResponse{
		MeetingID: meetingID,
		Path:      dst,
		SizeBytes: file.Size,
	})
}

// Transcribe handles POST /api/v1/meetings/:meeting_id/transcribe
// The body is optional; omitted fields fall back to configured defaults.
func (h *MeetingHandler) Transcribe(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}

	var req dto.TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	opts := h.defaults
	if req.Provider != "" {
		opts.Provider = transcription.ParseKind(req.Provider)
	}
	if req.Model != "" {
		opts.Model = transcription.ParseModel(req.Model)
	}
	opts.EnableDiarization = req.Diarization

	status, err := h.orchestrator.TranscribeWith(c.Request.Context(), meetingID, opts)
	if err != nil {
		h.transcribeError(c, meetingID, err)
		return
	}

	c.JSON(http.StatusOK, dto.TranscribeResponse{
		MeetingID: meetingID,
		Status:    string(status),
	})
}

// Extract handles POST /api/v1/meetings/:meeting_id/extract
// Pulls structured items out of the meeting transcript via a completion
// provider.
func (h *MeetingHandler) Extract(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}

	var req dto.ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	provider := req.Provider
	if provider == "" {
		provider = h.aiProvider
	}

	result, err := h.extraction.Extract(c.Request.Context(), meetingID, ai.ExtractionConfig{
		ActionItems: req.ActionItems,
		Decisions:   req.Decisions,
		Deadlines:   req.Deadlines,
		Backlog:     req.Backlog,
	}, provider, req.Model)
	if err != nil {
		h.extractError(c, meetingID, err)
		return
	}

	c.JSON(http.StatusOK, dto.ExtractResponse{
		MeetingID:  meetingID,
		Result:     result.JSON,
		Provider:   result.Provider,
		Model:      result.Model,
		TokensUsed: result.TokensUsed,
	})
}

func (h *MeetingHandler) extractError(c *gin.Context, meetingID string, err error) {
	h.logger.Error("Extraction failed",
		slog.String("meeting_id", meetingID),
		slog.String("error", err.Error()),
	)

	var providerErr *ai.ProviderError

	switch {
	case errors.Is(err, meetings.ErrNoTranscript):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Meeting has no transcript",
		})
	case errors.As(err, &providerErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":    "Completion provider failed",
			"provider": providerErr.Provider,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Extraction failed",
		})
	}
}

// transcribeError maps orchestrator failures onto HTTP statuses.
func (h *MeetingHandler) transcribeError(c *gin.Context, meetingID string, err error) {
	h.logger.Error("Transcription failed",
		slog.String("meeting_id", meetingID),
		slog.String("error", err.Error()),
	)

	var providerErr *transcription.ProviderError

	switch {
	case errors.Is(err, meetings.ErrMeetingNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Meeting not found",
		})
	case errors.Is(err, meetings.ErrNoAudio):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Meeting has no audio to transcribe",
		})
	case errors.Is(err, transcription.ErrProviderUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Transcription provider is not available",
		})
	case errors.As(err, &providerErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":    "Transcription provider failed",
			"provider": string(providerErr.Provider),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Transcription failed",
		})
	}
}

// meetingID validates the path parameter, writing the error response itself.
func (h *MeetingHandler) meetingID(c *gin.Context) (string, bool) {
	meetingID := c.Param("meeting_id")
	if _, err := uuid.Parse(meetingID); err != nil {
		h.logger.Error("Invalid meeting_id format",
			slog.String("meeting_id", meetingID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "meeting_id must be a valid UUID",
		})
		return "", false
	}
	return meetingID, true
}

func meetingResponse(meeting meetings.Meeting) dto.MeetingResponse {
	return dto.MeetingResponse{
		MeetingID: meeting.ID,
		Title:     meeting.Title,
		Status:    string(meeting.Status),
		CreatedAt: meeting.CreatedAt.Format(time.RFC3339),
		UpdatedAt: meeting.UpdatedAt.Format(time.RFC3339),
	}
}
