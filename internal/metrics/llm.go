package metrics

import "github.com/prometheus/client_golang/prometheus"

// LLM generation metrics.
var (
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of generation requests",
		},
		[]string{"model", "status"}, // success / error / timeout
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Generation duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"model"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Prompt and output tokens processed by the generation model",
		},
		[]string{"model", "type"},
	)
)

// RegisterLLMMetrics registers generation metrics.
func RegisterLLMMetrics() {
	register("llm", LLMRequestsTotal, LLMRequestDuration, LLMTokensTotal)
}
