package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc/codes"

	"github.com/robuust/reverserelations/pkg/cache"
)

// PrometheusExporter exports metrics to Prometheus format.
type PrometheusExporter struct {
	reverseQueries *prometheus.CounterVec
	eagerLoadBatch *prometheus.HistogramVec
	eagerLoadPairs *prometheus.HistogramVec
	droppedSources *prometheus.CounterVec
	snapshotSize   *prometheus.HistogramVec
	grpcRequests   *prometheus.CounterVec
	grpcDuration   *prometheus.HistogramVec
	grpcErrors     *prometheus.CounterVec
}

var sizeBuckets = []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000}

// NewPrometheusExporter creates a new Prometheus exporter registered on reg.
func NewPrometheusExporter(reg prometheus.Registerer) *PrometheusExporter {
	factory := promauto.With(reg)
	return &PrometheusExporter{
		reverseQueries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reverserelations_reverse_queries_total",
				Help: "Total number of reverse element queries built",
			},
			[]string{"kind"},
		),
		eagerLoadBatch: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reverserelations_eager_load_batch_size",
				Help:    "Number of owning elements per eager-loading map",
				Buckets: sizeBuckets,
			},
			[]string{"kind"},
		),
		eagerLoadPairs: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reverserelations_eager_load_pairs",
				Help:    "Number of pairs per eager-loading map",
				Buckets: sizeBuckets,
			},
			[]string{"kind"},
		),
		droppedSources: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reverserelations_dropped_source_specifiers_total",
				Help: "Total number of input source specifiers that did not resolve to a group",
			},
			[]string{"kind"},
		),
		snapshotSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reverserelations_snapshot_sources",
				Help:    "Number of previous sources captured before an element save",
				Buckets: sizeBuckets,
			},
			[]string{"kind"},
		),
		grpcRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reverserelations_grpc_requests_total",
				Help: "Total number of gRPC requests",
			},
			[]string{"method"},
		),
		grpcDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reverserelations_grpc_request_duration_seconds",
				Help:    "Duration of gRPC requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"method"},
		),
		grpcErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reverserelations_grpc_errors_total",
				Help: "Total number of gRPC errors by status code",
			},
			[]string{"method", "code"},
		),
	}
}

// RecordRequest records a request in Prometheus.
func (e *PrometheusExporter) RecordRequest(method string) {
	e.grpcRequests.WithLabelValues(method).Inc()
}

// RecordDuration records a duration in Prometheus.
func (e *PrometheusExporter) RecordDuration(method string, durationSeconds float64) {
	e.grpcDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordError records an error in Prometheus.
func (e *PrometheusExporter) RecordError(method string, code codes.Code) {
	e.grpcErrors.WithLabelValues(method, code.String()).Inc()
}

// RecordReverseQuery records a reverse query being built.
func (e *PrometheusExporter) RecordReverseQuery(kind string) {
	e.reverseQueries.WithLabelValues(kind).Inc()
}

// RecordEagerLoad records the batch size and pair count of an eager-loading map.
func (e *PrometheusExporter) RecordEagerLoad(kind string, batchSize, pairs int) {
	e.eagerLoadBatch.WithLabelValues(kind).Observe(float64(batchSize))
	e.eagerLoadPairs.WithLabelValues(kind).Observe(float64(pairs))
}

// RecordDroppedSources records unresolved input source specifiers.
func (e *PrometheusExporter) RecordDroppedSources(kind string, n int) {
	e.droppedSources.WithLabelValues(kind).Add(float64(n))
}

// RecordSnapshot records the size of a pre-save snapshot.
func (e *PrometheusExporter) RecordSnapshot(kind string, size int) {
	e.snapshotSize.WithLabelValues(kind).Observe(float64(size))
}

// RegisterCacheMetrics exports the hit and miss counts and the hit rate of a
// named cache. stats is read on every scrape.
func RegisterCacheMetrics(reg prometheus.Registerer, name string, stats func() *cache.Metrics) {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"cache": name}

	factory.NewCounterFunc(prometheus.CounterOpts{
		Name:        "reverserelations_cache_hits_total",
		Help:        "Total number of cache hits",
		ConstLabels: labels,
	}, func() float64 {
		return float64(stats().Hits)
	})
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name:        "reverserelations_cache_misses_total",
		Help:        "Total number of cache misses",
		ConstLabels: labels,
	}, func() float64 {
		return float64(stats().Misses)
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "reverserelations_cache_hit_rate",
		Help:        "Current cache hit rate (0.0 to 1.0)",
		ConstLabels: labels,
	}, func() float64 {
		return stats().HitRate()
	})
}
