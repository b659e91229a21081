// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ragd"

var registerOnce sync.Map // group name -> *sync.Once

// register registers collectors of a group once per process.
func register(group string, cs ...prometheus.Collector) {
	once, _ := registerOnce.LoadOrStore(group, &sync.Once{})
	once.(*sync.Once).Do(func() {
		prometheus.MustRegister(cs...)
	})
}

// RegisterAll registers every collector group. Must be called once from main.
func RegisterAll() {
	RegisterEmbeddingMetrics()
	RegisterLLMMetrics()
	RegisterTCPMetrics()
	RegisterCacheMetrics()
	RegisterPipelineMetrics()
	RegisterHTTPMetrics()
}
