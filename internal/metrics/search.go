package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query pipeline stages.
const (
	StageLexical  = "lexical"
	StageEmbed    = "embed"
	StageVector   = "vector"
	StageMetadata = "metadata"
	StageCatalog  = "catalog"
)

// Reasons a vector candidate never reaches the response.
const (
	DropMissingMetadata = "missing_metadata"
	DropFiltered        = "filtered"
	DropTruncated       = "truncated"
)

// Hybrid query metrics.
var (
	SearchStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reviewsearch",
			Subsystem: "search",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each hybrid query stage",
			Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"stage", "status"},
	)

	SearchCandidatesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reviewsearch",
			Subsystem: "search",
			Name:      "candidates_dropped_total",
			Help:      "Vector candidates dropped before assembly",
		},
		[]string{"reason"},
	)

	SearchBeamWidth = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reviewsearch",
			Subsystem: "search",
			Name:      "query_beam_width",
			Help:      "Requested HNSW query beam width (EF_RUNTIME)",
			Buckets:   []float64{10, 50, 100, 200, 400, 800, 1600},
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers the hybrid query metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchStageDuration, SearchCandidatesDropped, SearchBeamWidth)
	searchMetricsRegistered = true
}
