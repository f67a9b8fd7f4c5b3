package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace          = "reviewsearch"
	embeddingSubsystem = "embedding"
)

// Provider calls, labelled by provider and model.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: embeddingSubsystem,
		Name: "requests_total",
		Help: "Embedding provider calls by outcome (success, error).",
	}, []string{"provider", "model", "status"})

	EmbeddingRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: embeddingSubsystem,
		Name:    "request_duration_seconds",
		Help:    "Embedding provider call latency.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"provider", "model"})

	// type is "prompt" or "total".
	EmbeddingTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: embeddingSubsystem,
		Name: "tokens_total",
		Help: "Tokens billed by the embedding provider.",
	}, []string{"provider", "model", "type"})

	EmbeddingErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: embeddingSubsystem,
		Name: "errors_total",
		Help: "Failed embedding provider calls by error class.",
	}, []string{"provider", "model", "error_type"})
)

// Decorators in front of the provider.
var (
	// layer is "redis" or "memo"; result is "hit", "miss" or "corrupt".
	EmbeddingCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: embeddingSubsystem,
		Name: "cache_total",
		Help: "Query embedding cache lookups.",
	}, []string{"layer", "result"})

	EmbeddingBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: embeddingSubsystem,
		Name: "breaker_state",
		Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
	}, []string{"name"})
)

var embMetricsRegistered bool

// RegisterEmbeddingMetrics registers the embedding collectors with the
// default registry. Safe to call more than once.
func RegisterEmbeddingMetrics() {
	if embMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		EmbeddingRequestsTotal, EmbeddingRequestDuration, EmbeddingTokensTotal,
		EmbeddingErrorsTotal, EmbeddingCacheTotal, EmbeddingBreakerState,
	)
	embMetricsRegistered = true
}
