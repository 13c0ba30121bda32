// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// LLMRequestDuration tracks provider call duration.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM provider call duration",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider", "operation", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// LLMStreamTierTotal tracks which streaming tier produced the response.
	LLMStreamTierTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_stream_tier_total",
			Help: "Streaming responses by the fallback tier that served them",
		},
		[]string{"provider", "tier"},
	)

	// StreamChunksTotal tracks chunks pushed to clients.
	StreamChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_chunks_total",
			Help: "Total response chunks pushed to streaming clients",
		},
		[]string{"transport"},
	)

	// StreamConnectionsActive tracks open streaming connections.
	StreamConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_connections_active",
			Help: "Number of open streaming connections",
		},
		[]string{"transport"},
	)

	// ConversationsTotal tracks total conversations created.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversations created",
		},
	)

	// MessagesTotal tracks total messages persisted.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages persisted",
		},
		[]string{"role"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMCall records the duration and outcome of a provider call.
func RecordLLMCall(provider, operation, status string, duration float64) {
	LLMRequestDuration.WithLabelValues(provider, operation, status).Observe(duration)
}

// RecordLLMTokens records token usage for a model.
func RecordLLMTokens(model string, tokensIn, tokensOut int) {
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordStreamTier records which fallback tier served a stream.
func RecordStreamTier(provider, tier string) {
	LLMStreamTierTotal.WithLabelValues(provider, tier).Inc()
}

// RecordStreamChunk records one chunk pushed over transport.
func RecordStreamChunk(transport string) {
	StreamChunksTotal.WithLabelValues(transport).Inc()
}

// IncrementStreamConnections increments the open connection count for transport.
func IncrementStreamConnections(transport string) {
	StreamConnectionsActive.WithLabelValues(transport).Inc()
}

// DecrementStreamConnections decrements the open connection count for transport.
func DecrementStreamConnections(transport string) {
	StreamConnectionsActive.WithLabelValues(transport).Dec()
}
