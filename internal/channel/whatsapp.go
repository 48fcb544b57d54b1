package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// WhatsAppClient talks to a WhatsApp HTTP gateway that exposes a
// send-message endpoint. The gateway itself (session handling, QR
// pairing) is outside this repository.
type WhatsAppClient struct {
	baseURL    string
	apiKey     string
	logger     *slog.Logger
	httpClient *http.Client
	timeout    time.Duration
}

// NewWhatsAppClient creates a WhatsAppClient targeting the given base URL.
func NewWhatsAppClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *WhatsAppClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WhatsAppClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logger,
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

type sendMessageRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type sendMessageResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SendWhatsApp posts a text message to the gateway's send endpoint.
func (c *WhatsAppClient) SendWhatsApp(ctx context.Context, to, body string) error {
	if to == "" {
		return fmt.Errorf("whatsapp recipient is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(sendMessageRequest{To: to, Body: body})
	if err != nil {
		return fmt.Errorf("failed to marshal whatsapp request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("WhatsApp gateway request failed",
			slog.String("to", to),
			slog.Any("error", err),
		)
		return fmt.Errorf("whatsapp gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("failed to read whatsapp response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whatsapp gateway returned status %d", resp.StatusCode)
	}

	var result sendMessageResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("failed to decode whatsapp response: %w", err)
	}
	if !result.Success {
		if result.Error == "" {
			result.Error = "gateway reported failure"
		}
		return fmt.Errorf("whatsapp send failed: %s", result.Error)
	}

	c.logger.Debug("WhatsApp message sent",
		slog.String("to", to),
		slog.Int("body_size", len(body)),
	)

	return nil
}
