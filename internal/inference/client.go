// Package inference wraps an OpenAI-compatible chat completion endpoint
// behind the small gateway surface the pattern engine needs: structured
// JSON out, or an error. Malformed model output is always an error,
// never an empty success.
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/tidwall/gjson"
)

// Config holds the gateway configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Request describes one structured inference call.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       map[string]any
}

// Client is the production inference gateway.
type Client struct {
	api     openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a Client from config.
func NewClient(config Config, logger *slog.Logger) *Client {
	opts := []option.RequestOption{}
	if config.APIKey != "" {
		opts = append(opts, option.WithAPIKey(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		api:     openai.NewClient(opts...),
		model:   config.Model,
		timeout: timeout,
		logger:  logger,
	}
}

// Infer runs one chat completion constrained to the given JSON schema
// and returns the raw JSON document the model produced.
func (c *Client) Infer(ctx context.Context, req Request) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()

	completion, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.SchemaName,
					Schema: req.Schema,
					Strict: openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("inference returned no choices")
	}

	content := completion.Choices[0].Message.Content
	if content == "" {
		return nil, fmt.Errorf("inference returned empty content")
	}
	if !gjson.Valid(content) {
		return nil, fmt.Errorf("inference returned invalid json")
	}

	c.logger.Debug("Inference completed",
		slog.String("model", c.model),
		slog.Duration("elapsed", time.Since(started)),
		slog.Int("content_size", len(content)),
	)

	return json.RawMessage(content), nil
}
