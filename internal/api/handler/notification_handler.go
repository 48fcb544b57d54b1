package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// NotificationHandler exposes manual scheduler triggers.
type NotificationHandler struct {
	logger    *slog.Logger
	scheduler Cycler
}

// NewNotificationHandler creates a new NotificationHandler instance
func NewNotificationHandler(deps *Dependencies) *NotificationHandler {
	return &NotificationHandler{
		logger:    deps.Logger,
		scheduler: deps.Scheduler,
	}
}

// RunCycle handles POST /api/v1/notifications/run-cycle
// Runs a full scan-and-deliver cycle outside the cron schedule.
func (h *NotificationHandler) RunCycle(c *gin.Context) {
	h.logger.Info("Manual notification cycle requested")

	result := h.scheduler.RunFullCycle(c.Request.Context())
	c.JSON(http.StatusOK, result)
}
