package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rotadireta/automation/internal/api/dto"
	"github.com/rotadireta/automation/internal/domain"
)

// MessageHandler accepts outbound message requests and hands them to
// the worker service through RabbitMQ.
type MessageHandler struct {
	logger    *slog.Logger
	publisher Publisher
}

// NewMessageHandler creates a new MessageHandler instance
func NewMessageHandler(deps *Dependencies) *MessageHandler {
	return &MessageHandler{
		logger:    deps.Logger,
		publisher: deps.Publisher,
	}
}

// SendMessage handles POST /api/v1/messages
// Validates the request and publishes it for asynchronous delivery.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	switch req.Channel {
	case domain.ChannelEmail, domain.ChannelWhatsApp:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "channel must be email or whatsapp",
		})
		return
	}

	msg := dto.OutboundMessage{
		MessageID:   uuid.New().String(),
		Channel:     req.Channel,
		Destination: req.Destination,
		Subject:     req.Subject,
		Body:        req.Body,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode outbound message", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to encode message",
		})
		return
	}

	if err := h.publisher.Publish(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Error("Failed to publish outbound message",
			slog.String("message_id", msg.MessageID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Failed to queue message",
		})
		return
	}

	h.logger.Info("Outbound message queued",
		slog.String("message_id", msg.MessageID),
		slog.String("channel", msg.Channel),
	)

	c.JSON(http.StatusAccepted, dto.SendMessageResponse{
		MessageID: msg.MessageID,
		Status:    "queued",
	})
}
