package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// viperConfigManager implements ConfigManager using Viper.
type viperConfigManager struct {
	configPath string
	envFile    string

	mu        sync.RWMutex
	config    *Config
	viper     *viper.Viper
	watchChan chan Config
	watchOnce sync.Once
}

// Load loads configuration from all sources.
func (m *viperConfigManager) Load(ctx context.Context) error {
	// .env never overrides variables already set in the process environment.
	if m.envFile != "" {
		if err := godotenv.Load(m.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading %s: %w", m.envFile, err)
		}
	}

	m.viper = viper.New()

	m.viper.SetConfigFile(m.configPath)
	m.viper.SetConfigType("yaml")

	m.viper.SetEnvPrefix("IVR")
	m.viper.AutomaticEnv()
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	m.setDefaults()

	if err := m.readConfigFile(); err != nil {
		return err
	}

	return m.refresh()
}

// readConfigFile reads the YAML file. A missing file is not an error.
func (m *viperConfigManager) readConfigFile() error {
	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// refresh rebuilds the Config from viper and the environment overrides.
func (m *viperConfigManager) refresh() error {
	cfg, err := m.unmarshalConfig()
	if err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return err
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns the current configuration.
func (m *viperConfigManager) Get(ctx context.Context) *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Validate validates configuration is correct and complete.
func (m *viperConfigManager) Validate(ctx context.Context) error {
	errs := m.Get(ctx).Validate()
	if len(errs) > 0 {
		var errMsgs []string
		for _, err := range errs {
			errMsgs = append(errMsgs, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errMsgs, "\n  - "))
	}
	return nil
}

// Watch watches for configuration changes and reloads. Nothing is delivered
// when the config file does not exist.
func (m *viperConfigManager) Watch(ctx context.Context) <-chan Config {
	if _, err := os.Stat(m.configPath); err != nil {
		return m.watchChan
	}

	m.watchOnce.Do(func() {
		m.viper.OnConfigChange(func(e fsnotify.Event) {
			if ctx.Err() != nil {
				return
			}
			if err := m.refresh(); err != nil {
				return
			}
			cfg := *m.Get(ctx)
			select {
			case m.watchChan <- cfg:
			default:
				// Channel full, skip this update
			}
		})
		m.viper.WatchConfig()
	})

	return m.watchChan
}

// Reload reloads configuration from sources.
func (m *viperConfigManager) Reload(ctx context.Context) error {
	if m.viper == nil {
		return m.Load(ctx)
	}
	if err := m.readConfigFile(); err != nil {
		return err
	}
	return m.refresh()
}

// setDefaults sets default values in viper.
func (m *viperConfigManager) setDefaults() {
	defaults := DefaultConfig()

	// Server defaults
	m.viper.SetDefault("server.host", defaults.Server.Host)
	m.viper.SetDefault("server.port", defaults.Server.Port)
	m.viper.SetDefault("server.max_body_bytes", defaults.Server.MaxBodyBytes)
	m.viper.SetDefault("server.read_timeout", defaults.Server.ReadTimeout)
	m.viper.SetDefault("server.write_timeout", defaults.Server.WriteTimeout)
	m.viper.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)

	// LLM defaults
	m.viper.SetDefault("llm.provider", defaults.LLM.Provider)
	m.viper.SetDefault("llm.api_key", defaults.LLM.APIKey)
	m.viper.SetDefault("llm.model", defaults.LLM.Model)
	m.viper.SetDefault("llm.base_url", defaults.LLM.BaseURL)
	m.viper.SetDefault("llm.max_tokens", defaults.LLM.MaxTokens)
	m.viper.SetDefault("llm.timeout", defaults.LLM.Timeout)

	// Analysis defaults
	m.viper.SetDefault("analysis.extraction_cache_size", defaults.Analysis.ExtractionCacheSize)
	m.viper.SetDefault("analysis.extraction_cache_ttl", defaults.Analysis.ExtractionCacheTTL)
	m.viper.SetDefault("analysis.default_image_mime", defaults.Analysis.DefaultImageMIME)

	// Logging defaults
	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)
	m.viper.SetDefault("logging.file", defaults.Logging.File)

	// Audit defaults
	m.viper.SetDefault("audit.enabled", defaults.Audit.Enabled)
	m.viper.SetDefault("audit.path", defaults.Audit.Path)
	m.viper.SetDefault("audit.max_size_mb", defaults.Audit.MaxSizeMB)
	m.viper.SetDefault("audit.max_backups", defaults.Audit.MaxBackups)
	m.viper.SetDefault("audit.max_age_days", defaults.Audit.MaxAgeDays)
	m.viper.SetDefault("audit.compress", defaults.Audit.Compress)
}

// unmarshalConfig unmarshals viper config into a new Config.
func (m *viperConfigManager) unmarshalConfig() (*Config, error) {
	cfg := &Config{}

	// Server
	cfg.Server.Host = m.viper.GetString("server.host")
	cfg.Server.Port = m.viper.GetInt("server.port")
	cfg.Server.MaxBodyBytes = m.viper.GetInt64("server.max_body_bytes")
	cfg.Server.ReadTimeout = m.viper.GetDuration("server.read_timeout")
	cfg.Server.WriteTimeout = m.viper.GetDuration("server.write_timeout")
	cfg.Server.AllowedOrigins = splitList(m.viper.GetStringSlice("server.allowed_origins"))

	// LLM
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(m.viper.GetString("llm.provider")))
	cfg.LLM.APIKey = m.viper.GetString("llm.api_key")
	cfg.LLM.Model = m.viper.GetString("llm.model")
	cfg.LLM.BaseURL = m.viper.GetString("llm.base_url")
	cfg.LLM.MaxTokens = m.viper.GetInt("llm.max_tokens")
	cfg.LLM.Timeout = m.viper.GetDuration("llm.timeout")

	// Analysis
	cfg.Analysis.ExtractionCacheSize = m.viper.GetInt("analysis.extraction_cache_size")
	cfg.Analysis.ExtractionCacheTTL = m.viper.GetDuration("analysis.extraction_cache_ttl")
	cfg.Analysis.DefaultImageMIME = m.viper.GetString("analysis.default_image_mime")

	// Logging
	cfg.Logging.Level = m.viper.GetString("logging.level")
	cfg.Logging.Format = m.viper.GetString("logging.format")
	cfg.Logging.File = m.viper.GetString("logging.file")

	// Audit
	cfg.Audit.Enabled = m.viper.GetBool("audit.enabled")
	cfg.Audit.Path = m.viper.GetString("audit.path")
	cfg.Audit.MaxSizeMB = m.viper.GetInt("audit.max_size_mb")
	cfg.Audit.MaxBackups = m.viper.GetInt("audit.max_backups")
	cfg.Audit.MaxAgeDays = m.viper.GetInt("audit.max_age_days")
	cfg.Audit.Compress = m.viper.GetBool("audit.compress")

	return cfg, nil
}

// applyEnvOverrides applies the unprefixed provider variables. A provider
// key only applies when that provider is selected.
func applyEnvOverrides(cfg *Config) error {
	providerKeys := map[string]string{
		"gemini":    "GEMINI_API_KEY",
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
	}
	if env, ok := providerKeys[cfg.LLM.Provider]; ok {
		if apiKey := os.Getenv(env); apiKey != "" {
			cfg.LLM.APIKey = apiKey
		}
	}

	if cfg.LLM.Provider == "ollama" {
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
	}

	if portEnv := os.Getenv("PORT"); portEnv != "" {
		port, err := strconv.Atoi(portEnv)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", portEnv, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

// splitList accepts both YAML lists and comma-separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
