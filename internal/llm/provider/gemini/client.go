package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/llm/types"
)

// Package gemini provides the Google Gemini provider for the LLM adapter,
// built on the google.golang.org/genai SDK. Images travel as inline data
// parts next to the prompt text.

// Gemini API constants
const (
	DefaultModel     = "gemini-2.5-flash"
	DefaultMaxTokens = 8192
	DefaultTimeout   = 120 * time.Second
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("gemini: empty response")

// Options tune the client beyond credentials and model.
type Options struct {
	BaseURL   string        // overrides the Gemini API endpoint, used in tests
	MaxTokens int           // default output token cap
	Timeout   time.Duration // per-request HTTP timeout
}

// GeminiClientImpl implements the Gemini provider (exported for adapter)
type GeminiClientImpl struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, apiKey, model string, opts Options) (*GeminiClientImpl, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
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

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: opts.Timeout},
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClientImpl{
		client:    client,
		model:     model,
		maxTokens: opts.MaxTokens,
	}, nil
}

// Complete sends one GenerateContent call.
func (c *GeminiClientImpl) Complete(ctx context.Context, req types.CompletionRequest) (*types.CompletionResponse, error) {
	system, messages := types.SystemAndMessages(req)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
		Temperature:     req.Temperature,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, convertMessages(messages), config)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return nil, ErrEmptyResponse
	}

	resp := &types.CompletionResponse{
		Content: text,
		Model:   c.model,
	}
	if u := result.UsageMetadata; u != nil {
		resp.Usage = types.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return resp, nil
}

// GetCapabilities returns model capabilities
func (c *GeminiClientImpl) GetCapabilities(ctx context.Context) (types.Capabilities, error) {
	return types.Capabilities{
		Provider:      "gemini",
		Model:         c.model,
		Vision:        true,
		MaxTokens:     c.maxTokens,
		ContextWindow: 1048576,
	}, nil
}

// Model returns the model name
func (c *GeminiClientImpl) Model() string { return c.model }

// convertMessages maps messages to genai contents. Assistant turns become
// the "model" role; images follow the text as inline data parts.
func convertMessages(messages []types.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == types.RoleAssistant {
			role = genai.RoleModel
		}

		parts := make([]*genai.Part, 0, 1+len(m.Images))
		if m.Content != "" {
			parts = append(parts, genai.NewPartFromText(m.Content))
		}
		for _, img := range m.Images {
			parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents
}
