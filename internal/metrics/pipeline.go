package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion and embedding pipeline metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentcv",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agentcv",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	ProfilePointsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agentcv",
			Name:      "profile_points_written_total",
			Help:      "Total vector points written across profile replacements",
		},
	)

	ProfileReplacementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentcv",
			Name:      "profile_replacements_total",
			Help:      "Profile replace operations by outcome",
		},
		[]string{"status"}, // "success" / "error" / "degraded"
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers the pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(ProfilePointsWritten)
	prometheus.MustRegister(ProfileReplacementsTotal)
	pipelineMetricsRegistered = true
}
