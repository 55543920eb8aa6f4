package config

import (
	"fmt"
	"mime"
	"net/url"
	"strings"

	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/llm/adapter"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/logging"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validate validates the configuration and returns validation errors.
// A missing API key is not an error: the service then starts degraded.
func (c *Config) Validate() []error {
	var errs []error

	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", c.Server.Port),
		})
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "server.max_body_bytes",
			Message: "max_body_bytes must be positive",
		})
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		errs = append(errs, &ValidationError{
			Field:   "server.timeouts",
			Message: "timeouts cannot be negative",
		})
	}

	// LLM
	provider, err := adapter.ParseProvider(c.LLM.Provider)
	if err != nil {
		errs = append(errs, &ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("must be one of %s", providerNames()),
		})
	}
	if c.LLM.BaseURL != "" {
		if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, &ValidationError{
				Field:   "llm.base_url",
				Message: fmt.Sprintf("invalid URL %q", c.LLM.BaseURL),
			})
		}
	}
	if provider == adapter.ProviderCustom && c.LLM.BaseURL == "" {
		errs = append(errs, &ValidationError{
			Field:   "llm.base_url",
			Message: "base_url is required for the custom provider",
		})
	}
	if c.LLM.MaxTokens < 1 {
		errs = append(errs, &ValidationError{
			Field:   "llm.max_tokens",
			Message: fmt.Sprintf("max_tokens must be at least 1, got %d", c.LLM.MaxTokens),
		})
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "llm.timeout",
			Message: "timeout must be positive",
		})
	}

	// Analysis
	if c.Analysis.ExtractionCacheSize < 0 {
		errs = append(errs, &ValidationError{
			Field:   "analysis.extraction_cache_size",
			Message: "extraction_cache_size cannot be negative",
		})
	}
	if c.Analysis.ExtractionCacheTTL < 0 {
		errs = append(errs, &ValidationError{
			Field:   "analysis.extraction_cache_ttl",
			Message: "extraction_cache_ttl cannot be negative",
		})
	}
	if mt, _, err := mime.ParseMediaType(c.Analysis.DefaultImageMIME); err != nil || !strings.HasPrefix(mt, "image/") {
		errs = append(errs, &ValidationError{
			Field:   "analysis.default_image_mime",
			Message: fmt.Sprintf("must be an image media type, got %q", c.Analysis.DefaultImageMIME),
		})
	}

	// Logging
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "logging.level",
			Message: "level must be one of debug, info, warn, error",
		})
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		errs = append(errs, &ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("format must be json or console, got %q", c.Logging.Format),
		})
	}

	// Audit
	if c.Audit.Enabled && c.Audit.Path == "" {
		errs = append(errs, &ValidationError{
			Field:   "audit.path",
			Message: "path is required when audit is enabled",
		})
	}

	return errs
}

func providerNames() string {
	names := make([]string, 0, len(adapter.SupportedProviders))
	for _, p := range adapter.SupportedProviders {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}
