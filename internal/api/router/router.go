package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rotadireta/automation/internal/api/handler"
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
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "automation-api-service",
		})
	})

	automationHandler := handler.NewAutomationHandler(deps)
	messageHandler := handler.NewMessageHandler(deps)
	notificationHandler := handler.NewNotificationHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		actions := v1.Group("/actions")
		{
			// POST /api/v1/actions - Record an observed action
			actions.POST("", automationHandler.RecordAction)

			// POST /api/v1/actions/evaluate - Ask whether automation should act
			actions.POST("/evaluate", automationHandler.Evaluate)
		}

		automation := v1.Group("/automation")
		{
			// GET /api/v1/automation/config - Current automation config
			automation.GET("/config", automationHandler.GetConfig)

			// POST /api/v1/automation/toggle - Flip the enabled flag
			automation.POST("/toggle", automationHandler.Toggle)

			// GET /api/v1/automation/stats - Learning counters
			automation.GET("/stats", automationHandler.Stats)
		}

		patterns := v1.Group("/patterns")
		{
			// POST /api/v1/patterns/:pattern_id/correct - Positive feedback
			patterns.POST("/:pattern_id/correct", automationHandler.MarkCorrect)
		}

		messages := v1.Group("/messages")
		{
			// POST /api/v1/messages - Queue an outbound message
			messages.POST("", messageHandler.SendMessage)
		}

		notifications := v1.Group("/notifications")
		{
			// POST /api/v1/notifications/run-cycle - Manual scheduler cycle
			notifications.POST("/run-cycle", notificationHandler.RunCycle)
		}
	}

	return r
}
