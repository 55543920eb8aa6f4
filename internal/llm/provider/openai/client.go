package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/llm/types"
)

// Package openai provides the OpenAI provider and, through NewCustomClient,
// any OpenAI-compatible endpoint (vLLM, LocalAI, LM Studio). Images are sent
// as data URLs in multi-part user messages.

// OpenAI API constants
const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o"
	DefaultCustomModel = "local-model"
	DefaultMaxTokens   = 4096
	DefaultTimeout     = 120 * time.Second
)

// ErrEmptyResponse is returned when the reply has no choices or no text.
var ErrEmptyResponse = errors.New("openai: empty response")

// Options tune the client beyond credentials and model.
type Options struct {
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// OpenAIClientImpl implements the OpenAI provider (exported for adapter)
type OpenAIClientImpl struct {
	client    *goopenai.Client
	provider  string
	model     string
	maxTokens int
}

// NewOpenAIClient creates a client for api.openai.com, or opts.BaseURL when set.
func NewOpenAIClient(apiKey, model string, opts Options) (*OpenAIClientImpl, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	return newClient("openai", apiKey, model, opts), nil
}

// NewCustomClient creates a client for an OpenAI-compatible endpoint. The API
// key is optional.
func NewCustomClient(baseURL, apiKey, model string, opts Options) (*OpenAIClientImpl, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required for custom provider")
	}
	if model == "" {
		model = DefaultCustomModel
	}
	opts.BaseURL = strings.TrimRight(baseURL, "/")
	return newClient("custom", apiKey, model, opts), nil
}

func newClient(provider, apiKey, model string, opts Options) *OpenAIClientImpl {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	config := goopenai.DefaultConfig(apiKey)
	config.BaseURL = opts.BaseURL
	config.HTTPClient = &http.Client{Timeout: opts.Timeout}

	return &OpenAIClientImpl{
		client:    goopenai.NewClientWithConfig(config),
		provider:  provider,
		model:     model,
		maxTokens: opts.MaxTokens,
	}
}

// Complete sends one chat completion.
func (c *OpenAIClientImpl) Complete(ctx context.Context, req types.CompletionRequest) (*types.CompletionResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	chatReq := goopenai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  convertMessages(req),
		MaxTokens: maxTokens,
	}
	if req.Temperature != nil {
		chatReq.Temperature = *req.Temperature
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", c.provider, err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, ErrEmptyResponse
	}

	return &types.CompletionResponse{
		Content: content,
		Model:   resp.Model,
		Usage: types.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// GetCapabilities returns model capabilities
func (c *OpenAIClientImpl) GetCapabilities(ctx context.Context) (types.Capabilities, error) {
	caps := types.Capabilities{
		Provider:      c.provider,
		Model:         c.model,
		Vision:        true,
		MaxTokens:     c.maxTokens,
		ContextWindow: 128000,
	}
	if c.provider == "custom" {
		// Unknown until the endpoint rejects an image.
		caps.ContextWindow = 0
	}
	return caps, nil
}

// Model returns the model name
func (c *OpenAIClientImpl) Model() string { return c.model }

// convertMessages maps the request onto chat messages. The system prompt
// becomes a leading system message; messages with images use MultiContent.
func convertMessages(req types.CompletionRequest) []goopenai.ChatCompletionMessage {
	system, messages := types.SystemAndMessages(req)

	result := make([]goopenai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, m := range messages {
		role := goopenai.ChatMessageRoleUser
		if m.Role == types.RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}

		if len(m.Images) == 0 {
			result = append(result, goopenai.ChatCompletionMessage{Role: role, Content: m.Content})
			continue
		}

		parts := make([]goopenai.ChatMessagePart, 0, 1+len(m.Images))
		if m.Content != "" {
			parts = append(parts, goopenai.ChatMessagePart{
				Type: goopenai.ChatMessagePartTypeText,
				Text: m.Content,
			})
		}
		for _, img := range m.Images {
			parts = append(parts, goopenai.ChatMessagePart{
				Type: goopenai.ChatMessagePartTypeImageURL,
				ImageURL: &goopenai.ChatMessageImageURL{
					URL:    dataURL(img),
					Detail: goopenai.ImageURLDetailAuto,
				},
			})
		}
		result = append(result, goopenai.ChatCompletionMessage{Role: role, MultiContent: parts})
	}
	return result
}

func dataURL(img types.Image) string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
