package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const bufferSize = 100

// Logger defines the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *Event) error

	// Analysis lifecycle
	LogAnalysisStarted(ctx context.Context, requestID string) error
	LogChannelExtracted(ctx context.Context, requestID, channel string, filtered bool) error
	LogAnalysisCompleted(ctx context.Context, requestID, channel string, duration time.Duration) error
	LogAnalysisFailed(ctx context.Context, requestID string, err error) error

	// Sync flushes buffered log entries
	Sync() error

	// Close closes the audit logger
	Close() error
}

// Config represents audit logger configuration
type Config struct {
	// Enabled turns the audit trail on. When false NewLogger returns a no-op logger.
	Enabled bool

	// Path is the path to the audit log file
	Path string

	// MaxSize is the maximum size in megabytes before rotation
	MaxSize int

	// MaxBackups is the maximum number of old log files to retain
	MaxBackups int

	// MaxAge is the maximum number of days to retain old log files
	MaxAge int

	// Compress determines if rotated files should be compressed
	Compress bool

	// FlushInterval is how often buffered events are written
	FlushInterval time.Duration
}

// DefaultConfig returns default audit logger configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:       false,
		Path:          "logs/audit.log",
		MaxSize:       100, // megabytes
		MaxBackups:    10,
		MaxAge:        30, // days
		Compress:      true,
		FlushInterval: time.Second,
	}
}

// auditLogger implements the Logger interface
type auditLogger struct {
	appLogger   *zap.Logger
	auditLogger *zap.Logger
	rotator     *lumberjack.Logger
	mu          sync.Mutex
	buffer      []*Event
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closeOnce   sync.Once
}

// NewLogger creates a new audit logger. appLogger receives internal errors
// and may be nil.
func NewLogger(config *Config, appLogger *zap.Logger) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if !config.Enabled {
		return NopLogger(), nil
	}
	if config.Path == "" {
		return nil, fmt.Errorf("audit log path is required")
	}
	if appLogger == nil {
		appLogger = zap.NewNop()
	}
	interval := config.FlushInterval
	if interval <= 0 {
		interval = time.Second
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}

	rotator := &lumberjack.Logger{
		Filename:   config.Path,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}

	// Audit logs are always INFO level, append-only.
	auditCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(rotator),
		zapcore.InfoLevel,
	)

	logger := &auditLogger{
		appLogger:   appLogger,
		auditLogger: zap.New(auditCore),
		rotator:     rotator,
		buffer:      make([]*Event, 0, bufferSize),
		flushTicker: time.NewTicker(interval),
		stopCh:      make(chan struct{}),
	}

	go logger.autoFlush()

	return logger, nil
}

// Log logs an audit event
func (l *auditLogger) Log(ctx context.Context, event *Event) error {
	if event.CorrelationID == "" {
		event.CorrelationID = GetCorrelationID(ctx)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.buffer = append(l.buffer, event)

	if len(l.buffer) >= bufferSize {
		return l.flushLocked()
	}
	return nil
}

// flushLocked flushes the buffer (caller must hold lock)
func (l *auditLogger) flushLocked() error {
	for _, event := range l.buffer {
		eventJSON, err := json.Marshal(event)
		if err != nil {
			l.appLogger.Error("failed to marshal audit event",
				zap.Error(err),
				zap.String("event_type", string(event.EventType)),
			)
			continue
		}

		l.auditLogger.Info(string(eventJSON),
			zap.String("correlation_id", event.CorrelationID),
			zap.String("event_type", string(event.EventType)),
			zap.String("result", string(event.Result)),
		)
	}

	l.buffer = l.buffer[:0]
	return nil
}

// autoFlush periodically flushes the buffer
func (l *auditLogger) autoFlush() {
	for {
		select {
		case <-l.flushTicker.C:
			l.mu.Lock()
			_ = l.flushLocked()
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

// LogAnalysisStarted logs receipt of an analysis request
func (l *auditLogger) LogAnalysisStarted(ctx context.Context, requestID string) error {
	event := NewEvent(EventAnalysisStarted).
		WithCorrelationID(requestID).
		WithDescription(fmt.Sprintf("Analysis %s started", requestID))

	return l.Log(ctx, event)
}

// LogChannelExtracted logs the channel the model found in the mail body
func (l *auditLogger) LogChannelExtracted(ctx context.Context, requestID, channel string, filtered bool) error {
	event := NewEvent(EventChannelExtracted).
		WithCorrelationID(requestID).
		WithChannel(channel).
		WithResult(ResultSuccess).
		WithMetadata("filtered", filtered)

	return l.Log(ctx, event)
}

// LogAnalysisCompleted logs a successful analysis
func (l *auditLogger) LogAnalysisCompleted(ctx context.Context, requestID, channel string, duration time.Duration) error {
	event := NewEvent(EventAnalysisCompleted).
		WithCorrelationID(requestID).
		WithChannel(channel).
		WithResult(ResultSuccess).
		WithDuration(duration).
		WithDescription(fmt.Sprintf("Analysis %s completed", requestID))

	return l.Log(ctx, event)
}

// LogAnalysisFailed logs a failed analysis
func (l *auditLogger) LogAnalysisFailed(ctx context.Context, requestID string, err error) error {
	event := NewEvent(EventAnalysisFailed).
		WithCorrelationID(requestID).
		WithError(err, "analysis_error").
		WithDescription(fmt.Sprintf("Analysis %s failed", requestID))

	return l.Log(ctx, event)
}

// Sync flushes buffered log entries
func (l *auditLogger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.flushLocked(); err != nil {
		return err
	}
	return l.auditLogger.Sync()
}

// Close flushes and closes the audit log file
func (l *auditLogger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.stopCh)
		l.flushTicker.Stop()

		if err = l.Sync(); err != nil {
			return
		}
		err = l.rotator.Close()
	})
	return err
}

type nopLogger struct{}

// NopLogger returns a Logger that records nothing.
func NopLogger() Logger { return nopLogger{} }

func (nopLogger) Log(context.Context, *Event) error { return nil }

func (nopLogger) LogAnalysisStarted(context.Context, string) error { return nil }

func (nopLogger) LogChannelExtracted(context.Context, string, string, bool) error { return nil }

func (nopLogger) LogAnalysisCompleted(context.Context, string, string, time.Duration) error {
	return nil
}

func (nopLogger) LogAnalysisFailed(context.Context, string, error) error { return nil }

func (nopLogger) Sync() error { return nil }

func (nopLogger) Close() error { return nil }

type correlationKey struct{}

// GetCorrelationID extracts correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}

// WithCorrelationID adds correlation ID to context
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// GenerateCorrelationID generates a new correlation ID
func GenerateCorrelationID() string {
	return uuid.NewString()
}
