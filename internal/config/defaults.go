package config

import (
	"net"
	"strconv"
	"time"
)

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "config.yaml"

// DefaultConfig returns a configuration with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Server defaults
	cfg.Server.Host = ""
	cfg.Server.Port = 3000
	cfg.Server.MaxBodyBytes = 20 << 20 // 20 MiB
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 180 * time.Second
	cfg.Server.AllowedOrigins = []string{"*"}

	// LLM defaults
	cfg.LLM.Provider = "gemini"
	cfg.LLM.Model = ""
	cfg.LLM.MaxTokens = 8192
	cfg.LLM.Timeout = 120 * time.Second

	// Analysis defaults
	cfg.Analysis.ExtractionCacheSize = 256
	cfg.Analysis.ExtractionCacheTTL = 10 * time.Minute
	cfg.Analysis.DefaultImageMIME = "image/png"

	// Logging defaults
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	// Audit defaults
	cfg.Audit.Enabled = false
	cfg.Audit.Path = "logs/audit.log"
	cfg.Audit.MaxSizeMB = 100
	cfg.Audit.MaxBackups = 10
	cfg.Audit.MaxAgeDays = 30
	cfg.Audit.Compress = true

	return cfg
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
