package adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/llm/provider/anthropic"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/llm/provider/gemini"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/llm/provider/ollama"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/llm/provider/openai"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/llm/types"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/metrics"
)

// ProviderType identifies which LLM provider is configured
type ProviderType string

const (
	ProviderGemini    ProviderType = "gemini"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
	ProviderCustom    ProviderType = "custom"
	ProviderOllama    ProviderType = "ollama"
	ProviderNone      ProviderType = "none" // No LLM configured
)

// SupportedProviders lists every accepted value of Config.Provider.
var SupportedProviders = []ProviderType{
	ProviderGemini, ProviderAnthropic, ProviderOpenAI, ProviderCustom, ProviderOllama, ProviderNone,
}

// ErrProviderNotConfigured is returned when an LLM operation is attempted without a configured provider
var ErrProviderNotConfigured = errors.New("LLM provider not configured")

// Config holds LLM provider configuration
type Config struct {
	Provider  ProviderType  `json:"provider"`
	APIKey    string        `json:"api_key"`  // For Gemini/Anthropic/OpenAI
	BaseURL   string        `json:"base_url"` // For Ollama/Custom, optional override for the others
	Model     string        `json:"model"`    // Model name, provider default when empty
	MaxTokens int           `json:"max_tokens"`
	Timeout   time.Duration `json:"timeout"`
}

// completer is satisfied by every provider client.
type completer interface {
	Complete(ctx context.Context, req types.CompletionRequest) (*types.CompletionResponse, error)
	GetCapabilities(ctx context.Context) (types.Capabilities, error)
	Model() string
}

// llmAdapterImpl is the unified adapter implementation
type llmAdapterImpl struct {
	provider ProviderType
	model    string
	client   completer
}

// ParseProvider normalises a provider name. The empty string maps to ProviderNone.
func ParseProvider(s string) (ProviderType, error) {
	p := ProviderType(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return ProviderNone, nil
	}
	for _, known := range SupportedProviders {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported provider: %s", s)
}

// ConfigFromEnv reads IVR_LLM_* environment variables.
func ConfigFromEnv() *Config {
	cfg := &Config{
		Provider: ProviderType(os.Getenv("IVR_LLM_PROVIDER")),
		APIKey:   os.Getenv("IVR_LLM_API_KEY"),
		BaseURL:  os.Getenv("IVR_LLM_BASE_URL"),
		Model:    os.Getenv("IVR_LLM_MODEL"),
	}
	if v, err := strconv.Atoi(os.Getenv("IVR_LLM_MAX_TOKENS")); err == nil {
		cfg.MaxTokens = v
	}
	return cfg
}

// NewLLMAdapter creates an adapter for cfg. A nil cfg is read from the
// environment. Missing credentials yield an unconfigured adapter rather than
// an error: the service starts degraded and analysis requests get HTTP 503.
func NewLLMAdapter(ctx context.Context, cfg *Config) (LLMAdapter, error) {
	if cfg == nil {
		cfg = ConfigFromEnv()
	}

	provider, err := ParseProvider(string(cfg.Provider))
	if err != nil {
		return nil, err
	}
	if provider == ProviderNone {
		return unconfigured(), nil
	}

	var client completer

	switch provider {
	case ProviderGemini:
		if cfg.APIKey == "" {
			return unconfigured(), nil
		}
		client, err = gemini.NewGeminiClient(ctx, cfg.APIKey, cfg.Model, gemini.Options{
			BaseURL: cfg.BaseURL, MaxTokens: cfg.MaxTokens, Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}

	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return unconfigured(), nil
		}
		client, err = anthropic.NewAnthropicClient(cfg.APIKey, cfg.Model, anthropic.Options{
			BaseURL: cfg.BaseURL, MaxTokens: cfg.MaxTokens, Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Anthropic client: %w", err)
		}

	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return unconfigured(), nil
		}
		client, err = openai.NewOpenAIClient(cfg.APIKey, cfg.Model, openai.Options{
			BaseURL: cfg.BaseURL, MaxTokens: cfg.MaxTokens, Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}

	case ProviderCustom:
		if cfg.BaseURL == "" {
			return unconfigured(), nil
		}
		client, err = openai.NewCustomClient(cfg.BaseURL, cfg.APIKey, cfg.Model, openai.Options{
			MaxTokens: cfg.MaxTokens, Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Custom client: %w", err)
		}

	case ProviderOllama:
		client, err = ollama.NewOllamaClient(cfg.BaseURL, cfg.Model, ollama.Options{
			MaxTokens: cfg.MaxTokens, Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
	}

	return &llmAdapterImpl{
		provider: provider,
		model:    client.Model(),
		client:   client,
	}, nil
}

func unconfigured() *llmAdapterImpl {
	return &llmAdapterImpl{provider: ProviderNone}
}

// Complete delegates to provider-specific client
func (a *llmAdapterImpl) Complete(ctx context.Context, req types.CompletionRequest) (*types.CompletionResponse, error) {
	if a.provider == ProviderNone {
		return nil, ErrProviderNotConfigured
	}

	start := time.Now()
	defer func() {
		duration := time.Since(start).Seconds()
		metrics.LLMRequestDuration.WithLabelValues(string(a.provider), a.model).Observe(duration)
	}()

	resp, err := a.client.Complete(ctx, req)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.LLMRequestsTotal.WithLabelValues(string(a.provider), a.model, status).Inc()

	if err != nil {
		return nil, err
	}

	metrics.LLMTokensUsed.WithLabelValues(string(a.provider), a.model, "input").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(string(a.provider), a.model, "output").Add(float64(resp.Usage.CompletionTokens))

	return resp, nil
}

// GetCapabilities delegates to provider-specific client
func (a *llmAdapterImpl) GetCapabilities(ctx context.Context) (types.Capabilities, error) {
	if a.provider == ProviderNone {
		return types.Capabilities{Provider: string(ProviderNone), Model: "none"}, nil
	}
	return a.client.GetCapabilities(ctx)
}

// Provider returns the configured provider type
func (a *llmAdapterImpl) Provider() ProviderType {
	return a.provider
}

// Model returns the model name, empty when unconfigured
func (a *llmAdapterImpl) Model() string {
	return a.model
}

// IsConfigured reports whether a usable provider sits behind adapter.
func IsConfigured(adapter LLMAdapter) bool {
	return adapter != nil && adapter.Provider() != ProviderNone
}
