package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	embeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Embedding provider calls by outcome",
		},
		[]string{"provider", "model", "status"},
	)

	embeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "request_duration_seconds",
			Help:      "Latency of successful embedding provider calls",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "model"},
	)

	embeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "tokens_total",
			Help:      "Tokens reported by the embedding provider",
		},
		[]string{"provider", "model", "type"},
	)

	embeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "errors_total",
			Help:      "Failed embedding provider calls by reason",
		},
		[]string{"provider", "model", "reason"},
	)

	// EmbeddingRetriesTotal counts provider calls retried after a transient failure.
	EmbeddingRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "retries_total",
			Help:      "Embedding calls retried after a transient failure",
		},
		[]string{"provider"},
	)

	// EmbeddingCacheTotal counts embedding cache lookups, result is "hit" or "miss".
	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"},
	)
)

// Embedding error reasons.
const (
	ReasonAPIError      = "api_error"
	ReasonCanceled      = "canceled"
	ReasonShortResponse = "short_response"
)

// RegisterEmbeddingMetrics registers the embedding collectors.
func RegisterEmbeddingMetrics() {
	register("embedding",
		embeddingRequestsTotal,
		embeddingRequestDuration,
		embeddingTokensTotal,
		embeddingErrorsTotal,
		EmbeddingRetriesTotal,
		EmbeddingCacheTotal,
	)
}

// EmbedCall measures one provider round-trip. Finish it with Fail or Done.
type EmbedCall struct {
	provider string
	model    string
	start    time.Time
}

// StartEmbed begins measuring a call to provider.
func StartEmbed(provider, model string) EmbedCall {
	return EmbedCall{provider: provider, model: model, start: time.Now()}
}

// Fail records a failed call.
func (c EmbedCall) Fail(reason string) {
	embeddingRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
	embeddingErrorsTotal.WithLabelValues(c.provider, c.model, reason).Inc()
}

// Done records a successful call with the token counts the provider reported.
// Zero counts are skipped.
func (c EmbedCall) Done(promptTokens, totalTokens int) {
	embeddingRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	embeddingRequestDuration.WithLabelValues(c.provider, c.model).Observe(time.Since(c.start).Seconds())
	if promptTokens > 0 {
		embeddingTokensTotal.WithLabelValues(c.provider, c.model, "prompt").Add(float64(promptTokens))
	}
	if totalTokens > 0 {
		embeddingTokensTotal.WithLabelValues(c.provider, c.model, "total").Add(float64(totalTokens))
	}
}
