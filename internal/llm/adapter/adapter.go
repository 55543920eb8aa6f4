package adapter

import (
	"context"

	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/llm/types"
)

// Package adapter provides a unified interface for the multimodal LLM providers
// the analyzer can talk to.
//
// Supported Providers:
//   1. Gemini: gemini-2.5-flash (default)
//   2. Anthropic: Claude models with vision
//   3. OpenAI: gpt-4o family
//   4. Custom: any OpenAI-compatible endpoint (vLLM, LocalAI, LM Studio)
//   5. Ollama: local vision models (llava, llama3.2-vision)
//
// Provider-specific request and response shapes never leave the provider
// packages; callers only see types.CompletionRequest and
// types.CompletionResponse.

// LLMAdapter defines the unified interface for LLM providers.
type LLMAdapter interface {
	// Complete sends a prompt (text plus optional inline images) and returns
	// the completion text and token usage.
	Complete(ctx context.Context, req types.CompletionRequest) (*types.CompletionResponse, error)

	// GetCapabilities returns supported features and limits for this provider/model.
	GetCapabilities(ctx context.Context) (types.Capabilities, error)

	// Provider returns the configured provider type.
	Provider() ProviderType

	// Model returns the model name requests are sent to.
	Model() string
}
