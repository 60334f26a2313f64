package metrics

import "github.com/prometheus/client_golang/prometheus"

// Embedding outcomes, used as the "outcome" label of EmbeddingRequestsTotal.
const (
	EmbeddingOK                = "ok"
	EmbeddingRateLimited       = "rate_limited"
	EmbeddingAPIError          = "api_error"
	EmbeddingEmptyResponse     = "empty_response"
	EmbeddingDimensionMismatch = "dimension_mismatch"
)

// Embedding metrics for row vectorization during imports.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docflat",
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Provider calls made for row content, by outcome",
		},
		[]string{"provider", "model", "outcome"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docflat",
			Subsystem: "embedding",
			Name:      "request_duration_seconds",
			Help:      "Provider call latency for successful requests",
			Buckets:   prometheus.ExponentialBuckets(0.025, 2, 10),
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docflat",
			Subsystem: "embedding",
			Name:      "tokens_total",
			Help:      "Tokens billed by the provider",
		},
		[]string{"provider", "model"},
	)

	EmbeddingTruncatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docflat",
			Subsystem: "embedding",
			Name:      "truncated_total",
			Help:      "Row texts cut to embedding.max_input_bytes before embedding",
		},
		[]string{"model"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docflat",
			Subsystem: "embedding",
			Name:      "cache_total",
			Help:      "Embedding cache lookups",
		},
		[]string{"result"}, // hit / miss
	)
)

var embMetricsRegistered bool

// RegisterEmbeddingMetrics registers embedding metrics. Must be called once from main.
func RegisterEmbeddingMetrics() {
	if embMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingTokensTotal,
		EmbeddingTruncatedTotal,
		EmbeddingCacheTotal,
	)
	embMetricsRegistered = true
}
