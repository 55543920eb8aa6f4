// Package analysis runs the two-step IVR log diagnosis: the language model
// first reads the channel number out of the mail body, the log is reduced to
// that channel's flow, and the model then analyses the reduced log together
// with the screenshot.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/audit"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/llm/adapter"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/llm/types"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/logfilter"
	"github.com/tjdrhd1207/IVR-LOG-ANALYZER/internal/metrics"
)

var digitsPattern = regexp.MustCompile(`^\d+$`)

// Request is the body of POST /analyze-ivr-log.
type Request struct {
	MailContent    string `json:"mailContent"`
	LogImageBase64 string `json:"logImageBase64"`
	LogText        string `json:"logText"`
}

// Result is the outcome of one analysis.
type Result struct {
	ChannelNumber string           `json:"channelNumber"`
	Analysis      string           `json:"analysis"`
	Filtered      bool             `json:"filtered"`
	FilteredLog   string           `json:"filteredLog"`
	Usage         types.TokenUsage `json:"usage"`
}

// Config tunes the analyzer.
type Config struct {
	// CacheSize bounds the channel extraction cache. Zero disables it.
	CacheSize int
	// CacheTTL expires cached extractions. Zero keeps them until evicted.
	CacheTTL time.Duration
	// DefaultImageMIME is used when the screenshot type cannot be determined.
	DefaultImageMIME string
	// MaxTokens caps the analysis answer. Zero uses the provider default.
	MaxTokens int
}

// Analyzer orchestrates channel extraction, log filtering and analysis.
// It is safe for concurrent use.
type Analyzer struct {
	llm    adapter.LLMAdapter
	cfg    Config
	logger *zap.Logger
	audit  audit.Logger
	cache  *expirable.LRU[string, string]
}

// New creates an Analyzer. logger and auditLog may be nil.
func New(llm adapter.LLMAdapter, cfg Config, logger *zap.Logger, auditLog audit.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if auditLog == nil {
		auditLog = audit.NopLogger()
	}
	if cfg.DefaultImageMIME == "" {
		cfg.DefaultImageMIME = "image/png"
	}

	a := &Analyzer{
		llm:    llm,
		cfg:    cfg,
		logger: logger.Named("analysis"),
		audit:  auditLog,
	}
	if cfg.CacheSize > 0 {
		a.cache = expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return a
}

// IsChannelNumber reports whether an extracted value should be used to
// filter the log. Anything else, including UnknownChannel, bypasses the filter.
func IsChannelNumber(s string) bool {
	return s != UnknownChannel && digitsPattern.MatchString(s)
}

// Analyze runs the full pipeline for req.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	requestID := audit.GetCorrelationID(ctx)
	_ = a.audit.LogAnalysisStarted(ctx, requestID)

	result, err := a.analyze(ctx, req)

	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		_ = a.audit.LogAnalysisFailed(ctx, requestID, err)
		return nil, err
	}

	metrics.AnalysesTotal.WithLabelValues("success").Inc()
	_ = a.audit.LogAnalysisCompleted(ctx, requestID, result.ChannelNumber, time.Since(start))
	a.logger.Info("analysis completed",
		zap.String("request_id", requestID),
		zap.String("channel", result.ChannelNumber),
		zap.Bool("filtered", result.Filtered),
		zap.Int("total_tokens", result.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (a *Analyzer) analyze(ctx context.Context, req Request) (*Result, error) {
	// Reject a broken screenshot before spending a model call on the mail.
	image, err := DecodeImage(req.LogImageBase64, a.cfg.DefaultImageMIME)
	if err != nil {
		return nil, err
	}

	result := &Result{}

	channel, usage, err := a.ExtractChannel(ctx, req.MailContent)
	if err != nil {
		return nil, err
	}
	result.ChannelNumber = channel
	result.Usage.Add(usage)

	result.FilteredLog, result.Filtered = a.reduceLog(req.LogText, channel)
	_ = a.audit.LogChannelExtracted(ctx, audit.GetCorrelationID(ctx), channel, result.Filtered)

	msg := types.Message{
		Role:    types.RoleUser,
		Content: AnalysisPrompt(req.MailContent, result.FilteredLog, channel),
	}
	if image != nil {
		msg.Images = []types.Image{*image}
	}

	resp, err := a.llm.Complete(ctx, types.CompletionRequest{
		Messages:  []types.Message{msg},
		MaxTokens: a.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("log analysis: %w", err)
	}
	result.Analysis = resp.Content
	result.Usage.Add(resp.Usage)

	return result, nil
}

// reduceLog filters logText down to channel when channel is a number.
func (a *Analyzer) reduceLog(logText, channel string) (string, bool) {
	if !IsChannelNumber(channel) {
		metrics.ChannelFilterResults.WithLabelValues("bypassed").Inc()
		return logText, false
	}

	// channel is non-empty here, so the filter cannot fail.
	filtered, _ := logfilter.FilterByChannel(logText, channel)
	if filtered == logfilter.NotFoundMessage {
		metrics.ChannelFilterResults.WithLabelValues("not_found").Inc()
	} else {
		metrics.ChannelFilterResults.WithLabelValues("found").Inc()
	}
	return filtered, true
}

// ExtractChannel asks the model which channel the mail is about and returns
// its trimmed answer. Answers are cached per mail body.
func (a *Analyzer) ExtractChannel(ctx context.Context, mail string) (string, types.TokenUsage, error) {
	key := cacheKey(mail)
	if a.cache != nil {
		if channel, ok := a.cache.Get(key); ok {
			metrics.ExtractionCacheLookups.WithLabelValues("hit").Inc()
			return channel, types.TokenUsage{}, nil
		}
		metrics.ExtractionCacheLookups.WithLabelValues("miss").Inc()
	}

	resp, err := a.llm.Complete(ctx, types.CompletionRequest{
		Messages:    []types.Message{{Role: types.RoleUser, Content: ExtractionPrompt(mail)}},
		Temperature: types.Float32(0),
	})
	if err != nil {
		return "", types.TokenUsage{}, fmt.Errorf("channel extraction: %w", err)
	}

	channel := strings.TrimSpace(resp.Content)
	a.logger.Debug("channel extracted", zap.String("channel", channel))

	if a.cache != nil {
		a.cache.Add(key, channel)
	}
	return channel, resp.Usage, nil
}

func cacheKey(mail string) string {
	sum := sha256.Sum256([]byte(mail))
	return hex.EncodeToString(sum[:])
}
