package metrics

import "github.com/prometheus/client_golang/prometheus"

// AnswerCacheTotal counts answer cache lookups.
var AnswerCacheTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answer_cache_total",
		Help:      "Answer cache hits and misses",
	},
	[]string{"result"},
)

// RegisterCacheMetrics registers answer cache metrics.
func RegisterCacheMetrics() {
	register("cache", AnswerCacheTotal)
}
