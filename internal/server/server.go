package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/analysis"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/config"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/llm/adapter"
)

// Name is reported by /info.
const Name = "IVR Log Analyzer"

// Version is overridden at build time with -ldflags "-X ...server.Version=...".
var Version = "0.1.0"

const shutdownTimeout = 10 * time.Second

// Server represents the analyzer's HTTP server
type Server struct {
	config *config.Config
	logger *zap.Logger

	// Core components
	analyzer   *analysis.Analyzer
	llmAdapter adapter.LLMAdapter

	// HTTP server
	handler    http.Handler
	httpServer *http.Server
	listener   net.Listener

	// Lifecycle
	wg sync.WaitGroup

	// State
	mu      sync.RWMutex
	running bool
}

// NewServer wires the HTTP surface around an analyzer. logger may be nil.
func NewServer(cfg *config.Config, logger *zap.Logger, analyzer *analysis.Analyzer, llm adapter.LLMAdapter) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer cannot be nil")
	}
	if llm == nil {
		return nil, fmt.Errorf("llm adapter cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:     cfg,
		logger:     logger.Named("server"),
		analyzer:   analyzer,
		llmAdapter: llm,
	}
	s.handler = s.buildHandler()
	return s, nil
}

// buildHandler registers routes and wraps them with middleware and CORS.
func (s *Server) buildHandler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.requestIDMiddleware, s.loggingMiddleware, s.recoveryMiddleware)

	// Health and metadata
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Analysis
	router.HandleFunc("/analyze-ivr-log", s.handleAnalyze).Methods(http.MethodPost)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/logs/filter", s.handleFilter).Methods(http.MethodPost)

	origins := s.config.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		// Credentials cannot be combined with a wildcard origin.
		AllowCredentials: !containsWildcard(origins),
	})
	return c.Handler(router)
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr(), err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	s.logger.Info("IVR log analyzer started",
		zap.String("addr", ln.Addr().String()),
		zap.String("llm_provider", string(s.llmAdapter.Provider())),
		zap.String("llm_model", s.llmAdapter.Model()),
		zap.Bool("llm_configured", adapter.IsConfigured(s.llmAdapter)),
	)
	return nil
}

// Stop gracefully stops the server, waiting for in-flight requests until ctx
// expires. A ctx without deadline is bounded by a ten second timeout.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is not running")
	}
	s.running = false
	srv := s.httpServer
	s.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
	}

	s.logger.Info("stopping IVR log analyzer")
	err := srv.Shutdown(ctx)
	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("IVR log analyzer stopped")
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
