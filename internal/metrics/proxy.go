package metrics

import "github.com/prometheus/client_golang/prometheus"

// Augmentation outcome labels.
const (
	OutcomeAugmented = "augmented" // context injected into the request
	OutcomeNoQuery   = "no_query"  // request carried no usable query text
	OutcomeGated     = "gated"     // keyword gate declined the query
	OutcomeNoResults = "no_results"
	OutcomeDegraded  = "degraded" // retrieval failed, request forwarded as-is
)

// Proxy Prometheus metrics.
var (
	AugmentationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragproxy",
			Name:      "augmentation_total",
			Help:      "Augmentation decisions per inference route",
		},
		[]string{"route", "outcome"},
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragproxy",
			Name:      "upstream_request_duration_seconds",
			Help:      "Backend request duration in seconds",
			Buckets:   []float64{0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"route", "mode"}, // mode: "stream" / "buffered"
	)

	UpstreamFirstByte = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragproxy",
			Name:      "upstream_first_byte_seconds",
			Help:      "Time until the first backend body byte, per route",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"route"},
	)

	RetrievedDocuments = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragproxy",
			Name:      "retrieved_documents",
			Help:      "Documents returned per retrieval above the score threshold",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		},
		[]string{"collection"},
	)
)

var proxyMetricsRegistered bool

// RegisterProxyMetrics registers Prometheus proxy metrics. Must be called once from main.
func RegisterProxyMetrics() {
	if proxyMetricsRegistered {
		return
	}
	prometheus.MustRegister(AugmentationTotal)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(UpstreamFirstByte)
	prometheus.MustRegister(RetrievedDocuments)
	proxyMetricsRegistered = true
}
