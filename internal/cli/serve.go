package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/analysis"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/audit"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/config"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/llm/adapter"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/logging"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/server"
)

const shutdownGrace = 15 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP analysis server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx, port)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override server.port")
	return cmd
}

// loadConfig loads and validates configuration from a.configPath.
func (a *app) loadConfig(ctx context.Context) (config.ConfigManager, *config.Config, error) {
	mgr, err := config.NewConfigManager(a.configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := mgr.Load(ctx); err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := mgr.Validate(ctx); err != nil {
		return nil, nil, err
	}
	cfg := *mgr.Get(ctx)
	return mgr, &cfg, nil
}

// runServe blocks until ctx is cancelled, then shuts the server down.
func (a *app) runServe(ctx context.Context, portOverride int) error {
	mgr, cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	if portOverride != 0 {
		if portOverride < 1 || portOverride > 65535 {
			return fmt.Errorf("--port must be between 1 and 65535, got %d", portOverride)
		}
		cfg.Server.Port = portOverride
	}

	logger, err := logging.New(cfg.LoggingConfig())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	auditLog, err := audit.NewLogger(cfg.AuditConfig(), logger.Logger)
	if err != nil {
		return fmt.Errorf("init audit log: %w", err)
	}
	defer func() { _ = auditLog.Close() }()

	llm, err := adapter.NewLLMAdapter(ctx, cfg.AdapterConfig())
	if err != nil {
		return fmt.Errorf("init LLM adapter: %w", err)
	}
	if !adapter.IsConfigured(llm) {
		logger.Warn("no LLM credentials configured, analysis requests will return 503",
			zap.String("provider", cfg.LLM.Provider))
	}

	analyzer := analysis.New(llm, analysis.Config{
		CacheSize:        cfg.Analysis.ExtractionCacheSize,
		CacheTTL:         cfg.Analysis.ExtractionCacheTTL,
		DefaultImageMIME: cfg.Analysis.DefaultImageMIME,
		MaxTokens:        cfg.LLM.MaxTokens,
	}, logger.Logger, auditLog)

	srv, err := server.NewServer(cfg, logger.Logger, analyzer, llm)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	_ = auditLog.Log(ctx, audit.NewEvent(audit.EventServerStarted).
		WithModel(string(llm.Provider()), llm.Model()).
		WithDescription("listening on "+srv.Addr()).
		WithResult(audit.ResultSuccess))

	updates := mgr.Watch(ctx)
	for running := true; running; {
		select {
		case <-ctx.Done():
			running = false
		case next := <-updates:
			a.applyReload(ctx, logger, auditLog, next)
		}
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	stopErr := srv.Stop(shutdownCtx)
	event := audit.NewEvent(audit.EventServerShutdown).WithResult(audit.ResultSuccess)
	if stopErr != nil {
		event.WithError(stopErr, "shutdown_timeout")
	}
	_ = auditLog.Log(shutdownCtx, event)
	return stopErr
}

// applyReload applies the settings that can change without a restart.
// Everything else needs the process restarted.
func (a *app) applyReload(ctx context.Context, logger *logging.Logger, auditLog audit.Logger, next config.Config) {
	previous := logger.Level()
	event := audit.NewEvent(audit.EventConfigReload).
		WithMetadata("path", a.configPath).
		WithMetadata("log_level", next.Logging.Level)

	if err := logger.SetLevel(next.Logging.Level); err != nil {
		logger.Warn("ignoring reloaded log level", zap.String("level", next.Logging.Level), zap.Error(err))
		_ = auditLog.Log(ctx, event.WithError(err, "invalid_log_level"))
		return
	}

	logger.Info("configuration reloaded",
		zap.String("previous_level", previous),
		zap.String("level", logger.Level()))
	_ = auditLog.Log(ctx, event.WithResult(audit.ResultSuccess))
}
