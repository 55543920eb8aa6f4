package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Service metrics exposed on /metrics.
var (
	// LLM metrics
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ivr_analyzer_llm_requests_total",
			Help: "Total number of LLM API requests",
		},
		[]string{"provider", "model", "status"},
	)

	LLMTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ivr_analyzer_llm_tokens_total",
			Help: "Total number of LLM tokens consumed",
		},
		[]string{"provider", "model", "type"}, // type: input/output
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ivr_analyzer_llm_request_duration_seconds",
			Help:    "LLM request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1min
		},
		[]string{"provider", "model"},
	)

	// Analysis metrics
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ivr_analyzer_analyses_total",
			Help: "Total number of IVR log analyses",
		},
		[]string{"status"}, // success/error
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ivr_analyzer_analysis_duration_seconds",
			Help:    "End-to-end analysis duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	ChannelFilterResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ivr_analyzer_channel_filter_total",
			Help: "Channel log filter outcomes",
		},
		[]string{"result"}, // found/not_found/bypassed
	)

	ExtractionCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ivr_analyzer_extraction_cache_lookups_total",
			Help: "Channel extraction cache lookups",
		},
		[]string{"result"}, // hit/miss
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ivr_analyzer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ivr_analyzer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
