package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/llm/types"
)

// Package ollama provides the Ollama provider for the LLM adapter. It talks
// to /api/chat directly; vision models (llava, llama3.2-vision) take images
// as base64 strings on the message.

// Ollama API constants
const (
	DefaultBaseURL   = "http://localhost:11434"
	DefaultModel     = "llava"
	DefaultMaxTokens = 2048
	DefaultTimeout   = 300 * time.Second
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("ollama: empty response")

// Options tune the client beyond endpoint and model.
type Options struct {
	MaxTokens int
	Timeout   time.Duration
}

// OllamaClientImpl implements the Ollama provider (exported for adapter)
type OllamaClientImpl struct {
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatOptions struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
	Error           string      `json:"error,omitempty"`
}

// NewOllamaClient creates a new Ollama client. No connection is attempted
// until the first request.
func NewOllamaClient(baseURL, model string, opts Options) (*OllamaClientImpl, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("invalid Ollama base URL %q", baseURL)
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

	return &OllamaClientImpl{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		maxTokens:  opts.MaxTokens,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}, nil
}

// Complete sends a non-streaming /api/chat request.
func (c *OllamaClientImpl) Complete(ctx context.Context, req types.CompletionRequest) (*types.CompletionResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	body := chatRequest{
		Model:    c.model,
		Messages: convertMessages(req),
		Stream:   false,
		Options: chatOptions{
			NumPredict:  maxTokens,
			Temperature: req.Temperature,
		},
	}

	resp, err := c.makeRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(resp.Message.Content)
	if content == "" {
		return nil, ErrEmptyResponse
	}

	return &types.CompletionResponse{
		Content: content,
		Model:   resp.Model,
		Usage: types.TokenUsage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}, nil
}

// GetCapabilities returns model capabilities. Vision support depends on the
// pulled model and is not probed.
func (c *OllamaClientImpl) GetCapabilities(ctx context.Context) (types.Capabilities, error) {
	return types.Capabilities{
		Provider:  "ollama",
		Model:     c.model,
		Vision:    true,
		MaxTokens: c.maxTokens,
	}, nil
}

// Model returns the model name
func (c *OllamaClientImpl) Model() string { return c.model }

// SetBaseURL overrides the Ollama base URL.  Used in tests.
func (c *OllamaClientImpl) SetBaseURL(url string) { c.baseURL = strings.TrimRight(url, "/") }

func convertMessages(req types.CompletionRequest) []chatMessage {
	system, messages := types.SystemAndMessages(req)

	result := make([]chatMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, chatMessage{Role: types.RoleSystem, Content: system})
	}
	for _, m := range messages {
		msg := chatMessage{Role: m.Role, Content: m.Content}
		if msg.Role != types.RoleAssistant {
			msg.Role = types.RoleUser
		}
		for _, img := range m.Images {
			msg.Images = append(msg.Images, base64.StdEncoding.EncodeToString(img.Data))
		}
		result = append(result, msg)
	}
	return result
}

func (c *OllamaClientImpl) makeRequest(ctx context.Context, req chatRequest) (*chatResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama API error %d: %s", httpResp.StatusCode, string(body))
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", resp.Error)
	}
	return &resp, nil
}
