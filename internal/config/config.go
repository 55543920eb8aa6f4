package config

import (
	"context"
	"time"

	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/audit"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/llm/adapter"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/logging"
)

// Package config provides configuration management for the IVR log analyzer.
//
// Configuration Sources (priority order, high to low):
//   1. Provider environment variables (GEMINI_API_KEY, ANTHROPIC_API_KEY,
//      OPENAI_API_KEY, OLLAMA_BASE_URL, PORT)
//   2. Environment variables (IVR_* prefix, "." replaced by "_")
//   3. .env file in the working directory (optional)
//   4. YAML config file (default: ./config.yaml, optional)
//   5. Built-in defaults (lowest priority)
//
// Main Configuration Sections:
//
//   1. Server
//      - host, port: listen address (default :3000)
//      - max_body_bytes: request body limit (default 20 MiB)
//      - read_timeout, write_timeout
//      - allowed_origins: CORS origins
//
//   2. LLM
//      - provider: "gemini" | "anthropic" | "openai" | "custom" | "ollama" | "none"
//      - api_key, model, base_url, max_tokens, timeout
//
//   3. Analysis
//      - extraction_cache_size, extraction_cache_ttl: channel extraction memo
//      - default_image_mime: used when the image type cannot be detected
//
//   4. Logging
//      - level, format ("json" | "console"), file
//
//   5. Audit
//      - enabled, path, max_size_mb, max_backups, max_age_days, compress

// Config represents the complete service configuration.
type Config struct {
	// Server configuration
	Server struct {
		Host           string
		Port           int
		MaxBodyBytes   int64
		ReadTimeout    time.Duration
		WriteTimeout   time.Duration
		AllowedOrigins []string
	}

	// LLM provider configuration
	LLM struct {
		Provider  string
		APIKey    string
		Model     string
		BaseURL   string
		MaxTokens int
		Timeout   time.Duration
	}

	// Analysis pipeline configuration
	Analysis struct {
		ExtractionCacheSize int
		ExtractionCacheTTL  time.Duration
		DefaultImageMIME    string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
		File   string
	}

	// Audit trail configuration
	Audit struct {
		Enabled    bool
		Path       string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		Compress   bool
	}
}

// ConfigManager defines the interface for configuration access.
type ConfigManager interface {
	// Load loads configuration from all sources.
	Load(ctx context.Context) error

	// Get returns the current configuration.
	Get(ctx context.Context) *Config

	// Validate validates configuration is correct and complete.
	Validate(ctx context.Context) error

	// Watch watches the config file and delivers each successfully reloaded
	// configuration.
	Watch(ctx context.Context) <-chan Config

	// Reload reloads configuration from sources.
	Reload(ctx context.Context) error
}

// NewConfigManager creates a new configuration manager. configPath may point
// to a missing file, in which case defaults and environment apply.
func NewConfigManager(configPath string) (ConfigManager, error) {
	mgr := &viperConfigManager{
		configPath: configPath,
		envFile:    ".env",
		config:     DefaultConfig(),
		watchChan:  make(chan Config, 1),
	}
	return mgr, nil
}

// NewConfigManagerWithDefaults creates a config manager with default config path.
func NewConfigManagerWithDefaults() (ConfigManager, error) {
	return NewConfigManager(DefaultConfigPath)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return joinHostPort(c.Server.Host, c.Server.Port)
}

// AdapterConfig returns the LLM section in the adapter's terms.
func (c *Config) AdapterConfig() *adapter.Config {
	return &adapter.Config{
		Provider:  adapter.ProviderType(c.LLM.Provider),
		APIKey:    c.LLM.APIKey,
		BaseURL:   c.LLM.BaseURL,
		Model:     c.LLM.Model,
		MaxTokens: c.LLM.MaxTokens,
		Timeout:   c.LLM.Timeout,
	}
}

// LoggingConfig returns the logging section for logging.New. The log file
// shares the audit rotation settings.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		File:       c.Logging.File,
		MaxSizeMB:  c.Audit.MaxSizeMB,
		MaxBackups: c.Audit.MaxBackups,
		MaxAgeDays: c.Audit.MaxAgeDays,
		Compress:   c.Audit.Compress,
	}
}

// AuditConfig returns the audit section for audit.NewLogger.
func (c *Config) AuditConfig() *audit.Config {
	return &audit.Config{
		Enabled:       c.Audit.Enabled,
		Path:          c.Audit.Path,
		MaxSize:       c.Audit.MaxSizeMB,
		MaxBackups:    c.Audit.MaxBackups,
		MaxAge:        c.Audit.MaxAgeDays,
		Compress:      c.Audit.Compress,
		FlushInterval: time.Second,
	}
}
