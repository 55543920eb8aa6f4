package server

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/audit"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware propagates or assigns a request id and stores it as the
// audit correlation id.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = audit.GenerateCorrelationID()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(audit.WithCorrelationID(r.Context(), id)))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		route := routeTemplate(r)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		fields := []zap.Field{
			zap.String("request_id", audit.GetCorrelationID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.statusCode),
			zap.Duration("duration", elapsed),
			zap.String("remote_addr", r.RemoteAddr),
		}
		switch {
		case rw.statusCode >= 500:
			s.logger.Error("request failed", fields...)
		case rw.statusCode >= 400:
			s.logger.Warn("request rejected", fields...)
		default:
			s.logger.Info("request", fields...)
		}
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					zap.String("request_id", audit.GetCorrelationID(r.Context())),
					zap.Any("panic", err),
					zap.ByteString("stack", debug.Stack()),
				)
				writeJSON(w, http.StatusInternalServerError, errorResponse{
					Error:   "Internal server error",
					Details: "unexpected panic",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// routeTemplate keeps metric label cardinality bounded to registered routes.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
