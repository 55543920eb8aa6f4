package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/analysis"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/audit"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/llm/adapter"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/logfilter"
)

const analyzeFailedMessage = "Failed to analyze IVR log"

// AnalyzeResponse is the success body of POST /analyze-ivr-log.
type AnalyzeResponse struct {
	Success       bool   `json:"success"`
	ChannelNumber string `json:"channelNumber"`
	Analysis      string `json:"analysis"`
}

// FilterRequest is the body of POST /api/v1/logs/filter.
type FilterRequest struct {
	LogText string `json:"logText"`
	Channel string `json:"channel"`
}

// FilterResponse carries both the structured and the rendered channel log.
type FilterResponse struct {
	Channel    string            `json:"channel"`
	Found      bool              `json:"found"`
	Entries    []logfilter.Entry `json:"entries"`
	ChannelLog string            `json:"channelLog"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// handleAnalyze handles POST /analyze-ivr-log
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeAnalyzeError(w, r, err)
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		s.writeAnalyzeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AnalyzeResponse{
		Success:       true,
		ChannelNumber: result.ChannelNumber,
		Analysis:      result.Analysis,
	})
}

func (s *Server) writeAnalyzeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	s.logger.Error("analysis failed",
		zap.String("request_id", audit.GetCorrelationID(r.Context())),
		zap.Int("status", status),
		zap.Error(err),
	)
	writeJSON(w, status, errorResponse{Error: analyzeFailedMessage, Details: err.Error()})
}

// handleFilter handles POST /api/v1/logs/filter
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeJSON(w, statusForError(err), errorResponse{Error: "Invalid request", Details: err.Error()})
		return
	}
	if req.Channel == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "Invalid request",
			Details: logfilter.ErrEmptyChannel.Error(),
		})
		return
	}

	entries := logfilter.Entries(req.LogText, req.Channel)
	if entries == nil {
		entries = []logfilter.Entry{}
	}
	writeJSON(w, http.StatusOK, FilterResponse{
		Channel:    req.Channel,
		Found:      len(entries) > 0,
		Entries:    entries,
		ChannelLog: logfilter.Render(entries),
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"llm_configured": adapter.IsConfigured(s.llmAdapter),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// handleReady reports not_ready while no LLM provider is configured.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !adapter.IsConfigured(s.llmAdapter) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"reason": adapter.ErrProviderNotConfigured.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":           Name,
		"version":        Version,
		"llm_provider":   string(s.llmAdapter.Provider()),
		"llm_model":      s.llmAdapter.Model(),
		"llm_configured": adapter.IsConfigured(s.llmAdapter),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// decodeJSON reads a size-limited JSON body into dst.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if limit := s.config.Server.MaxBodyBytes; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return &requestError{err: err}
	}
	return nil
}

// requestError marks a body that could not be parsed.
type requestError struct {
	err error
}

func (e *requestError) Error() string {
	return fmt.Sprintf("invalid request body: %v", e.err)
}

func (e *requestError) Unwrap() error {
	return e.err
}

// statusForError maps pipeline errors to HTTP status codes.
func statusForError(err error) int {
	var (
		reqErr *requestError
		maxErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &reqErr), errors.Is(err, analysis.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, adapter.ErrProviderNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
