package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/decisiondesk/meetscribe/internal/queue"
)

// StatsHandler exposes queue observability endpoints
type StatsHandler struct {
	logger *slog.Logger
	queue  *queue.Service
}

// NewStatsHandler creates a new StatsHandler instance
func NewStatsHandler(deps *Dependencies) *StatsHandler {
	return &StatsHandler{
		logger: deps.Logger,
		queue:  deps.Queue,
	}
}

// QueueStats handles GET /api/v1/stats/queue
func (h *StatsHandler) QueueStats(c *gin.Context) {
	stats, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to collect queue stats", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to collect queue stats",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pending":    stats[queue.JobStatusPending],
		"accepted":   stats[queue.JobStatusAccepted],
		"processing": stats[queue.JobStatusProcessing],
		"completed":  stats[queue.JobStatusCompleted],
		"failed":     stats[queue.JobStatusFailed],
		"cancelled":  stats[queue.JobStatusCancelled],
	})
}
