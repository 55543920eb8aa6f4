package anthropic

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/llm/types"
)

// Anthropic API constants
const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 4096
	DefaultTimeout   = 120 * time.Second
)

// ErrEmptyResponse is returned when the reply carries no text block.
var ErrEmptyResponse = errors.New("anthropic: empty response")

// Options tune the client beyond credentials and model.
type Options struct {
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// AnthropicClientImpl implements the Anthropic provider (exported for adapter)
type AnthropicClientImpl struct {
	client    sdk.Client
	model     string
	maxTokens int
}

// NewAnthropicClient creates a new Anthropic client
func NewAnthropicClient(apiKey, model string, opts Options) (*AnthropicClientImpl, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: opts.Timeout}),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &AnthropicClientImpl{
		client:    sdk.NewClient(reqOpts...),
		model:     model,
		maxTokens: opts.MaxTokens,
	}, nil
}

// Complete sends one Messages API call.
func (c *AnthropicClientImpl) Complete(ctx context.Context, req types.CompletionRequest) (*types.CompletionResponse, error) {
	// Anthropic takes the system prompt as a top-level field.
	system, messages := types.SystemAndMessages(req)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  convertMessages(messages),
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(float64(*req.Temperature))
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	content := strings.TrimSpace(text.String())
	if content == "" {
		return nil, ErrEmptyResponse
	}

	return &types.CompletionResponse{
		Content: content,
		Model:   string(msg.Model),
		Usage: types.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}

// GetCapabilities returns model capabilities
func (c *AnthropicClientImpl) GetCapabilities(ctx context.Context) (types.Capabilities, error) {
	return types.Capabilities{
		Provider:      "anthropic",
		Model:         c.model,
		Vision:        true,
		MaxTokens:     c.maxTokens,
		ContextWindow: 200000,
	}, nil
}

// Model returns the model name
func (c *AnthropicClientImpl) Model() string { return c.model }

// convertMessages converts []types.Message to Anthropic message params.
// Images are sent base64-encoded after the text block.
func convertMessages(messages []types.Message) []sdk.MessageParam {
	result := make([]sdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		blocks := make([]sdk.ContentBlockParamUnion, 0, 1+len(m.Images))
		if m.Content != "" {
			blocks = append(blocks, sdk.NewTextBlock(m.Content))
		}
		for _, img := range m.Images {
			blocks = append(blocks, sdk.NewImageBlockBase64(img.MIMEType, base64.StdEncoding.EncodeToString(img.Data)))
		}

		if m.Role == types.RoleAssistant {
			result = append(result, sdk.NewAssistantMessage(blocks...))
		} else {
			result = append(result, sdk.NewUserMessage(blocks...))
		}
	}
	return result
}
