package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// prometheusRegisterer keeps the Prometheus dependency out of the
// constructor signature's import list for callers that disable metrics.
type prometheusRegisterer = prometheus.Registerer

// pipelineMetrics holds the pipeline's Prometheus instruments.
type pipelineMetrics struct {
	// resourcesTotal counts ingested resources by outcome.
	resourcesTotal *prometheus.CounterVec
	// blocksTotal counts block persistence attempts by outcome.
	blocksTotal *prometheus.CounterVec
	// fragmentsTotal counts fragment persistence attempts by outcome.
	fragmentsTotal *prometheus.CounterVec
	// embedCalls counts backend block-embedding calls that were not
	// served from the cache.
	embedCalls prometheus.Counter
	// ingestDuration observes end-to-end Ingest latency in seconds.
	ingestDuration prometheus.Histogram
}

// newPipelineMetrics registers the pipeline instruments on reg.
func newPipelineMetrics(reg prometheus.Registerer) *pipelineMetrics {
	factory := promauto.With(reg)
	return &pipelineMetrics{
		resourcesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catena",
			Subsystem: "pipeline",
			Name:      "resources_total",
			Help:      "Ingested resources by outcome.",
		}, []string{"outcome"}),
		blocksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catena",
			Subsystem: "pipeline",
			Name:      "blocks_total",
			Help:      "Block persistence attempts by outcome.",
		}, []string{"outcome"}),
		fragmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catena",
			Subsystem: "pipeline",
			Name:      "fragments_total",
			Help:      "Fragment persistence attempts by outcome.",
		}, []string{"outcome"}),
		embedCalls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "catena",
			Subsystem: "pipeline",
			Name:      "embed_calls_total",
			Help:      "Block embedding calls that missed the cache.",
		}),
		ingestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "catena",
			Subsystem: "pipeline",
			Name:      "ingest_duration_seconds",
			Help:      "End-to-end ingest latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
