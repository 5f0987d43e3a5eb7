// Package openai implements the completion service on the OpenAI chat
// completions API. Ollama is served by the same client through its
// OpenAI-compatible endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/infrastructure/config"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
)

// DefaultOllamaURL is used for the ollama provider when no base URL is set.
const DefaultOllamaURL = "http://localhost:11434/v1"

// wrapKey holds array results, since structured output must be an object.
const wrapKey = "items"

// ErrEmptyResponse is returned when the API answers without choices.
var ErrEmptyResponse = errors.New("completion returned no choices")

// Client implements outbound.CompletionService
type Client struct {
	client      openai.Client
	model       string
	visionModel string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// NewClient creates a client from the AI configuration
func NewClient(cfg config.AIConfig, logger *zap.Logger, opts ...option.RequestOption) *Client {
	namedLogger := logger.Named("openai")

	apiKey := cfg.APIKey
	baseURL := cfg.BaseURL
	if cfg.Provider == "ollama" {
		if baseURL == "" {
			baseURL = DefaultOllamaURL
		}
		if apiKey == "" {
			apiKey = "ollama"
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	requestOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if baseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(baseURL))
	}
	requestOpts = append(requestOpts, opts...)

	namedLogger.Info("Completion client initialized",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.String("base_url", baseURL),
	)

	return &Client{
		client:      openai.NewClient(requestOpts...),
		model:       cfg.Model,
		visionModel: cfg.VisionModel,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      namedLogger,
	}
}

var _ outbound.CompletionService = (*Client)(nil)

// Complete sends the conversation and returns the raw JSON text of the
// first choice. The result is not validated here.
func (c *Client) Complete(ctx context.Context, req outbound.CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}

	hasMedia := false
	for _, m := range req.Messages {
		switch m.Role {
		case outbound.RoleAssistant:
			messages = append(messages, openai.ChatCompletionMessageParamOfAssistant(m.Text))
		case outbound.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Text))
		default:
			if len(m.Media) == 0 {
				messages = append(messages, openai.UserMessage(m.Text))
				continue
			}
			hasMedia = true
			parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(m.Text)}
			for _, media := range m.Media {
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: media.URL,
				}))
			}
			messages = append(messages, openai.UserMessage(parts))
		}
	}

	model := c.model
	if hasMedia && c.visionModel != "" {
		model = c.visionModel
	}

	schema, wrapped := objectSchema(req.Schema.Document)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.maxTokens))
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}
	if schema != nil {
		name := req.Schema.Name
		if name == "" {
			name = req.Name
		}
		jsonSchema := openai.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   name,
			Schema: schema,
			Strict: openai.Bool(false),
		}
		if req.Schema.Description != "" {
			jsonSchema.Description = openai.String(req.Schema.Description)
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: jsonSchema},
		}
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		c.logger.Error("Chat completion failed",
			zap.String("prompt", req.Name),
			zap.String("model", model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return "", fmt.Errorf("chat completion %s: %w", req.Name, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug("Chat completion finished",
		zap.String("prompt", req.Name),
		zap.String("model", model),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)),
	)

	if wrapped {
		return unwrap(content), nil
	}
	return content, nil
}

// Ping checks that the configured model is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.client.Models.Get(ctx, c.model); err != nil {
		return fmt.Errorf("model %s unavailable: %w", c.model, err)
	}
	return nil
}

// objectSchema returns a schema whose root is an object. Array schemas are
// wrapped under wrapKey.
func objectSchema(doc map[string]any) (map[string]any, bool) {
	if len(doc) == 0 {
		return nil, false
	}
	if doc["type"] != "array" {
		return doc, false
	}
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{wrapKey: doc},
		"required":             []string{wrapKey},
		"additionalProperties": false,
	}, true
}

// unwrap returns the wrapped array, or content unchanged when the model
// answered with something else so validation can report it.
func unwrap(content string) string {
	if !gjson.Valid(content) {
		return content
	}
	items := gjson.Get(content, wrapKey)
	if !items.Exists() || !items.IsArray() {
		return content
	}
	return items.Raw
}
