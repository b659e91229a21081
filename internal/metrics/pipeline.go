package metrics

import "github.com/prometheus/client_golang/prometheus"

// Document processing metrics.
var (
	PipelineStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_step_duration_seconds",
			Help:      "Pipeline step duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"step"},
	)

	PipelineStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_steps_total",
			Help:      "Pipeline step runs by outcome",
		},
		[]string{"step", "status"},
	)

	PipelineProgress = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_progress_ratio",
			Help:      "Completion ratio of the running pipeline step",
		},
		[]string{"step"},
	)

	IndexedChunks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_chunks",
			Help:      "Chunks in the active vector index",
		},
	)
)

// RegisterPipelineMetrics registers pipeline metrics.
func RegisterPipelineMetrics() {
	register("pipeline", PipelineStepDuration, PipelineStepsTotal, PipelineProgress, IndexedChunks)
}
