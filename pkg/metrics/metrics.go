// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks local API request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qwikask_api_request_duration_seconds",
			Help:    "Local API request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total local API requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwikask_api_requests_total",
			Help: "Total local API requests",
		},
		[]string{"method", "path", "status"},
	)

	// LLMStreamDuration tracks LLM streaming response duration.
	LLMStreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qwikask_llm_stream_duration_seconds",
			Help:    "LLM streaming response duration",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"provider", "status"},
	)

	// LLMTokensTotal counts token callbacks delivered to the session.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwikask_llm_stream_tokens_total",
			Help: "Total streamed text fragments delivered",
		},
		[]string{"provider"},
	)

	// LLMStreamErrors counts terminated streams by error category.
	LLMStreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwikask_llm_stream_errors_total",
			Help: "Total failed LLM streams by category",
		},
		[]string{"provider", "category"},
	)

	// LLMDecodeSkips counts malformed SSE frames that were skipped.
	LLMDecodeSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwikask_llm_decode_skips_total",
			Help: "Total malformed SSE frames skipped",
		},
		[]string{"provider"},
	)

	// TitleGenerations counts title generation attempts by outcome.
	TitleGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwikask_title_generations_total",
			Help: "Total title generation attempts",
		},
		[]string{"provider", "outcome"},
	)

	// BestEffortFailures counts swallowed persistence failures.
	BestEffortFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwikask_best_effort_failures_total",
			Help: "Total best-effort writes that failed",
		},
		[]string{"operation"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qwikask_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// ConversationsTotal tracks total conversations created.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qwikask_conversations_total",
			Help: "Total conversations created",
		},
	)

	// MessagesTotal tracks total messages persisted.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qwikask_messages_total",
			Help: "Total messages persisted",
		},
		[]string{"role"},
	)
)

// RecordRequest records metrics for a local API request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMStream records the outcome of one streaming call.
func RecordLLMStream(provider, status string, duration float64) {
	LLMStreamDuration.WithLabelValues(provider, status).Observe(duration)
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
