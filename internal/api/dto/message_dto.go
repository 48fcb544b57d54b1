package dto

// SendMessageRequest is the payload for POST /api/v1/messages
type SendMessageRequest struct {
	Channel     string `json:"channel" binding:"required"`
	Destination string `json:"destination" binding:"required"`
	Subject     string `json:"subject"`
	Body        string `json:"body" binding:"required"`
}

// OutboundMessage is the wire format published to RabbitMQ for the
// worker service.
type OutboundMessage struct {
	MessageID   string `json:"message_id"`
	Channel     string `json:"channel"`
	Destination string `json:"destination"`
	Subject     string `json:"subject,omitempty"`
	Body        string `json:"body"`
}

// SendMessageResponse is the body for POST /api/v1/messages
type SendMessageResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}
