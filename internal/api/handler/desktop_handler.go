package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/decisiondesk/meetscribe/internal/api/dto"
	"github.com/decisiondesk/meetscribe/internal/meetings"
	"github.com/decisiondesk/meetscribe/internal/queue"
)

// desktopUsageMeta is the provenance metadata serialized into the
// zero-cost usage record for desktop-processed transcriptions.
type desktopUsageMeta struct {
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	Diarization      bool   `json:"diarization"`
	ProcessingTimeMs int64  `json:"processingTimeMs"`
}

// DesktopHandler serves the desktop worker surface. The desktop app polls
// for pending jobs, downloads audio, processes locally, and posts results
// back.
type DesktopHandler struct {
	logger   *slog.Logger
	queue    *queue.Service
	meetings meetings.Store
}

// NewDesktopHandler creates a new DesktopHandler instance
func NewDesktopHandler(deps *Dependencies) *DesktopHandler {
	return &DesktopHandler{
		logger:   deps.Logger,
		queue:    deps.Queue,
		meetings: deps.Meetings,
	}
}

// ListQueue handles GET /api/v1/desktop/queue
// Returns all jobs waiting for desktop processing, oldest first.
func (h *DesktopHandler) ListQueue(c *gin.Context) {
	jobs, err := h.queue.PendingJobs(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list pending jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list pending jobs",
		})
		return
	}

	response := make([]dto.PendingJobResponse, len(jobs))
	for i, job := range jobs {
		response[i] = dto.PendingJobResponse{
			MeetingID:   job.MeetingID,
			Model:       job.Model,
			Language:    job.Language,
			Diarization: job.EnableDiarization,
		}
	}

	c.JSON(http.StatusOK, response)
}

// AcceptJob handles POST /api/v1/desktop/queue/:meeting_id/accept
func (h *DesktopHandler) AcceptJob(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}

	job, ok := h.findJob(c, meetingID)
	if !ok {
		return
	}

	if err := h.queue.MarkAccepted(c.Request.Context(), meetingID); err != nil {
		h.logger.Error("Failed to accept job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to accept job",
		})
		return
	}

	c.JSON(http.StatusOK, dto.AcceptJobResponse{
		MeetingID:   meetingID,
		Model:       job.Model,
		Language:    job.Language,
		Diarization: job.EnableDiarization,
		AudioURL:    "/api/v1/desktop/queue/" + meetingID + "/audio",
	})
}

// DownloadAudio handles GET /api/v1/desktop/queue/:meeting_id/audio
func (h *DesktopHandler) DownloadAudio(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}

	job, ok := h.findJob(c, meetingID)
	if !ok {
		return
	}

	if _, err := os.Stat(job.AudioPath); err != nil {
		h.logger.Error("Audio file missing for queued job",
			slog.String("meeting_id", meetingID),
			slog.String("path", job.AudioPath),
		)
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Audio file not found",
		})
		return
	}

	c.FileAttachment(job.AudioPath, filepath.Base(job.AudioPath))
}

// SubmitResult handles POST /api/v1/desktop/queue/:meeting_id/result
// A result with an error message fails the job; otherwise the transcript is
// saved, a zero-cost usage record is written, and the job completes.
func (h *DesktopHandler) SubmitResult(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}

	job, ok := h.findJob(c, meetingID)
	if !ok {
		return
	}

	var req dto.TranscriptionResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid result body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	ctx := c.Request.Context()

	if req.Error != "" {
		if err := h.queue.MarkFailed(ctx, meetingID, req.Error); err != nil {
			h.logger.Error("Failed to record job failure", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to record result",
			})
			return
		}
		if err := h.meetings.UpdateStatus(ctx, meetingID, meetings.StatusError); err != nil {
			h.logger.Error("Failed to update meeting status", slog.String("error", err.Error()))
		}
		c.JSON(http.StatusOK, dto.ResultResponse{
			MeetingID: meetingID,
			Status:    string(meetings.StatusError),
		})
		return
	}

	language := req.Language
	if language == "" {
		language = job.Language
	}

	if err := h.meetings.UpsertTranscript(ctx, meetings.Transcript{
		ID:        uuid.New().String(),
		MeetingID: meetingID,
		Language:  language,
		Text:      req.Text,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		h.logger.Error("Failed to save transcript", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to save transcript",
		})
		return
	}

	if err := h.meetings.InsertUsage(ctx, h.usageRecord(meetingID, job, req)); err != nil {
		h.logger.Error("Failed to save usage record", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to save usage record",
		})
		return
	}

	if err := h.queue.MarkCompleted(ctx, meetingID); err != nil {
		h.logger.Error("Failed to complete job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to complete job",
		})
		return
	}

	if err := h.meetings.UpdateStatus(ctx, meetingID, meetings.StatusDone); err != nil {
		h.logger.Error("Failed to update meeting status", slog.String("error", err.Error()))
	}

	c.JSON(http.StatusOK, dto.ResultResponse{
		MeetingID: meetingID,
		Status:    string(meetings.StatusDone),
	})
}

// CancelJob handles POST /api/v1/desktop/queue/:meeting_id/cancel
// Cancelling resets the meeting to NEW so transcription can be requested
// again with a different provider.
func (h *DesktopHandler) CancelJob(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}

	if err := h.queue.Cancel(c.Request.Context(), meetingID); err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "No job for meeting " + meetingID,
			})
			return
		}
		h.logger.Error("Failed to cancel job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to cancel job",
		})
		return
	}

	if err := h.meetings.UpdateStatus(c.Request.Context(), meetingID, meetings.StatusNew); err != nil {
		h.logger.Error("Failed to update meeting status", slog.String("error", err.Error()))
	}

	c.JSON(http.StatusOK, gin.H{
		"meetingId": meetingID,
		"status":    string(queue.JobStatusCancelled),
	})
}

// usageRecord builds the zero-cost ledger entry for a desktop result.
func (h *DesktopHandler) usageRecord(meetingID string, job queue.Job, req dto.TranscriptionResultRequest) meetings.UsageRecord {
	units := decimal.NewFromInt(1)
	if req.DurationMinutes != nil {
		units = *req.DurationMinutes
	}

	var processingTimeMs int64
	if req.ProcessingTimeMs != nil {
		processingTimeMs = *req.ProcessingTimeMs
	}

	meta, err := json.Marshal(desktopUsageMeta{
		Provider:         "desktop_local",
		Model:            job.Model,
		Diarization:      job.EnableDiarization,
		ProcessingTimeMs: processingTimeMs,
	})
	if err != nil {
		h.logger.Error("Failed to marshal usage metadata", slog.String("error", err.Error()))
	}

	return meetings.UsageRecord{
		ID:        uuid.New().String(),
		MeetingID: meetingID,
		Service:   meetings.ServiceWhisper,
		Units:     units,
		USD:       decimal.Zero,
		BRL:       decimal.Zero,
		Meta:      string(meta),
		CreatedAt: time.Now().UTC(),
	}
}

func (h *DesktopHandler) findJob(c *gin.Context, meetingID string) (queue.Job, bool) {
	job, err := h.queue.GetJob(c.Request.Context(), meetingID)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "No job for meeting " + meetingID,
			})
			return queue.Job{}, false
		}
		h.logger.Error("Failed to look up job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to look up job",
		})
		return queue.Job{}, false
	}
	return job, true
}

func (h *DesktopHandler) meetingID(c *gin.Context) (string, bool) {
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
