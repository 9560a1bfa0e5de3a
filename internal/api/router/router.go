package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/decisiondesk/meetscribe/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if deps.DBClient != nil {
			if err := deps.DBClient.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "meetscribe-api",
					"error":   err.Error(),
				})
				return
			}
		}

		// A broker outage degrades event fan-out but does not fail the
		// service.
		events := "disabled"
		if deps.Events != nil {
			events = "connected"
			if !deps.Events.IsConnected() {
				events = "disconnected"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "meetscribe-api",
			"events":  events,
		})
	})

	meetingHandler := handler.NewMeetingHandler(deps)
	desktopHandler := handler.NewDesktopHandler(deps)
	statsHandler := handler.NewStatsHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		meetingsGroup := v1.Group("/meetings")
		{
			// POST /api/v1/meetings - Create a meeting
			meetingsGroup.POST("", meetingHandler.CreateMeeting)

			// GET /api/v1/meetings/:meeting_id - Get meeting status
			meetingsGroup.GET("/:meeting_id", meetingHandler.GetMeeting)

			// POST /api/v1/meetings/:meeting_id/audio - Upload audio
			meetingsGroup.POST("/:meeting_id/audio", meetingHandler.UploadAudio)

			// POST /api/v1/meetings/:meeting_id/transcribe - Run transcription
			meetingsGroup.POST("/:meeting_id/transcribe", meetingHandler.Transcribe)

			// POST /api/v1/meetings/:meeting_id/extract - Extract structured items
			meetingsGroup.POST("/:meeting_id/extract", meetingHandler.Extract)
		}

		desktop := v1.Group("/desktop/queue")
		{
			// GET /api/v1/desktop/queue - List pending jobs
			desktop.GET("", desktopHandler.ListQueue)

			// POST /api/v1/desktop/queue/:meeting_id/accept - Claim a job
			desktop.POST("/:meeting_id/accept", desktopHandler.AcceptJob)

			// GET /api/v1/desktop/queue/:meeting_id/audio - Download audio
			desktop.GET("/:meeting_id/audio", desktopHandler.DownloadAudio)

			// POST /api/v1/desktop/queue/:meeting_id/result - Submit result
			desktop.POST("/:meeting_id/result", desktopHandler.SubmitResult)

			// POST /api/v1/desktop/queue/:meeting_id/cancel - Cancel a job
			desktop.POST("/:meeting_id/cancel", desktopHandler.CancelJob)
		}

		stats := v1.Group("/stats")
		{
			// GET /api/v1/stats/queue - Queue counters by status
			stats.GET("/queue", statsHandler.QueueStats)
		}
	}

	return r
}
