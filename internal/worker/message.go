package worker

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/rotadireta/automation/internal/domain"
)

// outboundMessage is the wire format published by the API service.
type outboundMessage struct {
	MessageID   string `json:"message_id"`
	Channel     string `json:"channel"`
	Destination string `json:"destination"`
	Subject     string `json:"subject,omitempty"`
	Body        string `json:"body"`
}

func parseOutboundMessage(body []byte) (*outboundMessage, error) {
	var msg outboundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("invalid message JSON: %w", err)
	}

	if _, err := uuid.Parse(msg.MessageID); err != nil {
		return nil, fmt.Errorf("invalid message_id %q: %w", msg.MessageID, err)
	}

	switch msg.Channel {
	case domain.ChannelEmail, domain.ChannelWhatsApp:
	default:
		return nil, fmt.Errorf("unknown channel %q", msg.Channel)
	}

	if msg.Destination == "" {
		return nil, fmt.Errorf("destination is required")
	}
	if msg.Body == "" {
		return nil, fmt.Errorf("body is required")
	}

	return &msg, nil
}
