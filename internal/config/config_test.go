package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/llm/adapter"
)

// clearProviderEnv keeps developer machines' keys out of the tests.
func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OLLAMA_BASE_URL", "PORT", "IVR_LLM_PROVIDER", "IVR_LLM_API_KEY"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func newManager(t *testing.T, path string) *viperConfigManager {
	t.Helper()
	mgr, err := NewConfigManager(path)
	require.NoError(t, err)
	m := mgr.(*viperConfigManager)
	m.envFile = filepath.Join(t.TempDir(), "missing.env")
	return m
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Test server defaults
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, int64(20<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, ":3000", cfg.Addr())

	// Test LLM defaults
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Empty(t, cfg.LLM.APIKey)

	// Test analysis defaults
	assert.Equal(t, "image/png", cfg.Analysis.DefaultImageMIME)
	assert.Equal(t, 10*time.Minute, cfg.Analysis.ExtractionCacheTTL)

	// Test logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Test audit defaults
	assert.False(t, cfg.Audit.Enabled)

	assert.Empty(t, cfg.Validate(), "defaults must validate without an API key")
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		modifyFn  func(*Config)
		wantError bool
		errorMsg  string
	}{
		{
			name:      "valid default config",
			modifyFn:  func(cfg *Config) {},
			wantError: false,
		},
		{
			name: "invalid port - too low",
			modifyFn: func(cfg *Config) {
				cfg.Server.Port = 0
			},
			wantError: true,
			errorMsg:  "port must be between 1 and 65535",
		},
		{
			name: "invalid port - too high",
			modifyFn: func(cfg *Config) {
				cfg.Server.Port = 70000
			},
			wantError: true,
			errorMsg:  "port must be between 1 and 65535",
		},
		{
			name: "non-positive body limit",
			modifyFn: func(cfg *Config) {
				cfg.Server.MaxBodyBytes = 0
			},
			wantError: true,
			errorMsg:  "max_body_bytes must be positive",
		},
		{
			name: "unknown provider",
			modifyFn: func(cfg *Config) {
				cfg.LLM.Provider = "bard"
			},
			wantError: true,
			errorMsg:  "must be one of gemini",
		},
		{
			name: "custom provider needs base url",
			modifyFn: func(cfg *Config) {
				cfg.LLM.Provider = "custom"
			},
			wantError: true,
			errorMsg:  "base_url is required for the custom provider",
		},
		{
			name: "malformed base url",
			modifyFn: func(cfg *Config) {
				cfg.LLM.Provider = "ollama"
				cfg.LLM.BaseURL = "localhost:11434"
			},
			wantError: true,
			errorMsg:  "invalid URL",
		},
		{
			name: "zero max tokens",
			modifyFn: func(cfg *Config) {
				cfg.LLM.MaxTokens = 0
			},
			wantError: true,
			errorMsg:  "max_tokens must be at least 1",
		},
		{
			name: "non-image default mime",
			modifyFn: func(cfg *Config) {
				cfg.Analysis.DefaultImageMIME = "text/plain"
			},
			wantError: true,
			errorMsg:  "must be an image media type",
		},
		{
			name: "invalid log level",
			modifyFn: func(cfg *Config) {
				cfg.Logging.Level = "verbose"
			},
			wantError: true,
			errorMsg:  "level must be one of",
		},
		{
			name: "invalid log format",
			modifyFn: func(cfg *Config) {
				cfg.Logging.Format = "text"
			},
			wantError: true,
			errorMsg:  "format must be json or console",
		},
		{
			name: "audit without path",
			modifyFn: func(cfg *Config) {
				cfg.Audit.Enabled = true
				cfg.Audit.Path = ""
			},
			wantError: true,
			errorMsg:  "path is required when audit is enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modifyFn(cfg)

			errs := cfg.Validate()

			if !tt.wantError {
				assert.Empty(t, errs, "expected no validation errors but got: %v", errs)
				return
			}

			require.NotEmpty(t, errs, "expected validation errors but got none")
			found := false
			for _, err := range errs {
				var ve *ValidationError
				assert.ErrorAs(t, err, &ve)
				if strings.Contains(err.Error(), tt.errorMsg) {
					found = true
				}
			}
			assert.True(t, found, "expected error message containing '%s', got: %v", tt.errorMsg, errs)
		})
	}
}

func TestConfigManagerLoad(t *testing.T) {
	clearProviderEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	configContent := `
server:
  port: 9090
  max_body_bytes: 1048576
  allowed_origins: ["https://ops.example.com", "http://localhost:5173"]

llm:
  provider: "Anthropic"
  api_key: "test-anthropic-key"
  model: "claude-sonnet-4-20250514"
  timeout: 45s

analysis:
  extraction_cache_ttl: 1m

logging:
  level: "debug"
  format: "console"

audit:
  enabled: true
  path: "/var/log/ivr/audit.log"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	mgr := newManager(t, configPath)
	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))

	cfg := mgr.Get(ctx)
	require.NotNil(t, cfg)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(1048576), cfg.Server.MaxBodyBytes)
	assert.Equal(t, []string{"https://ops.example.com", "http://localhost:5173"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "test-anthropic-key", cfg.LLM.APIKey)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, time.Minute, cfg.Analysis.ExtractionCacheTTL)
	assert.Equal(t, 256, cfg.Analysis.ExtractionCacheSize, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Audit.Enabled)

	ac := cfg.AdapterConfig()
	assert.Equal(t, adapter.ProviderAnthropic, ac.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", ac.Model)

	assert.Equal(t, "/var/log/ivr/audit.log", cfg.AuditConfig().Path)
	assert.NoError(t, mgr.Validate(ctx))
}

func TestConfigManagerEnvironmentOverrides(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("PORT", "7070")
	t.Setenv("GEMINI_API_KEY", "env-gemini-key")
	t.Setenv("ANTHROPIC_API_KEY", "ignored-for-gemini")
	t.Setenv("IVR_LOGGING_LEVEL", "warn")
	t.Setenv("IVR_SERVER_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
server:
  port: 8081

llm:
  provider: "gemini"
  api_key: "file-key"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	mgr := newManager(t, configPath)
	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))

	cfg := mgr.Get(ctx)

	assert.Equal(t, 7070, cfg.Server.Port, "PORT should be overridden by environment variable")
	assert.Equal(t, "env-gemini-key", cfg.LLM.APIKey, "API key should come from environment variable")
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
}

func TestConfigManagerOllamaBaseURL(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("IVR_LLM_PROVIDER", "ollama")
	t.Setenv("OLLAMA_BASE_URL", "http://gpu-box:11434")

	mgr := newManager(t, filepath.Join(t.TempDir(), "none.yaml"))
	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))

	cfg := mgr.Get(ctx)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "http://gpu-box:11434", cfg.LLM.BaseURL)
}

func TestConfigManagerInvalidPortEnv(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("PORT", "http")

	mgr := newManager(t, filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, mgr.Load(context.Background()))
}

func TestConfigManagerDotEnv(t *testing.T) {
	clearProviderEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("GEMINI_API_KEY=dotenv-key\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("GEMINI_API_KEY") })

	mgr := newManager(t, filepath.Join(dir, "config.yaml"))
	mgr.envFile = envPath

	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))
	assert.Equal(t, "dotenv-key", mgr.Get(ctx).LLM.APIKey)
}

func TestConfigManagerMissingFile(t *testing.T) {
	clearProviderEnv(t)
	mgr := newManager(t, filepath.Join(t.TempDir(), "nonexistent-config.yaml"))

	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx), "missing file should fall back to defaults")

	cfg := mgr.Get(ctx)
	assert.NotNil(t, cfg)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestConfigManagerValidation(t *testing.T) {
	clearProviderEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	configContent := `
server:
  port: 99999

llm:
  provider: "invalid-provider"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	mgr := newManager(t, configPath)
	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))

	err := mgr.Validate(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "llm.provider")
}

func TestConfigManagerReload(t *testing.T) {
	clearProviderEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("logging:\n  level: info\n"), 0644))

	mgr := newManager(t, configPath)
	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))
	assert.Equal(t, "info", mgr.Get(ctx).Logging.Level)

	require.NoError(t, os.WriteFile(configPath, []byte("logging:\n  level: error\n"), 0644))
	require.NoError(t, mgr.Reload(ctx))
	assert.Equal(t, "error", mgr.Get(ctx).Logging.Level)
}

func TestConfigManagerWatchMissingFile(t *testing.T) {
	clearProviderEnv(t)
	mgr := newManager(t, filepath.Join(t.TempDir(), "nonexistent.yaml"))
	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))

	ch := mgr.Watch(ctx)
	require.NotNil(t, ch)
	select {
	case <-ch:
		t.Fatal("no update expected without a config file")
	default:
	}
}
