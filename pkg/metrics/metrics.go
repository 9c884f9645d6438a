// Package metrics provides Prometheus metrics for the price engine.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "price_engine"

var (
	// SourceFetchesTotal counts strategy invocations by outcome (ok, empty, error).
	SourceFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "Total number of price source fetches by outcome",
		},
		[]string{"source", "outcome"},
	)

	// SourcePricesTotal counts prices extracted per source after sanity bounds.
	SourcePricesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_prices_total",
			Help:      "Total number of prices extracted from a source",
		},
		[]string{"source"},
	)

	// SourceFetchDuration is a histogram of per-source fetch latency.
	SourceFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Duration of price source fetches",
			Buckets:   []float64{.1, .25, .5, 1, 2, 5, 10, 15, 30},
		},
		[]string{"source"},
	)

	// CacheOperationsTotal counts cache operations by result.
	CacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations by result",
		},
		[]string{"operation", "result"},
	)

	// OutlierRejectionsTotal is a counter of rejected outlier prices.
	OutlierRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outlier_rejections_total",
			Help:      "Total number of outlier prices rejected",
		},
		[]string{"stage"},
	)

	// OutlierFallbacksTotal counts synthetic fallback values produced by the filter.
	OutlierFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outlier_fallbacks_total",
			Help:      "Total number of times the outlier filter fell back to a representative value",
		},
		[]string{"kind"},
	)

	// SearchesTotal counts price searches by outcome.
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of price searches by outcome",
		},
		[]string{"item_type", "outcome"},
	)

	// SearchDuration is a histogram of end-to-end search latency.
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of price searches",
			Buckets:   []float64{.005, .05, .5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"outcome"},
	)

	// JobsTotal counts background price jobs by status.
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total number of background price jobs by status",
		},
		[]string{"status"},
	)

	// JobQueueDepth is the number of jobs waiting for a worker.
	JobQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_queue_depth",
			Help:      "Number of background price jobs waiting for a worker",
		},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5, 20},
		},
		[]string{"endpoint"},
	)
)

var registerOnce sync.Once

// Init registers all collectors with the default Prometheus registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SourceFetchesTotal,
			SourcePricesTotal,
			SourceFetchDuration,
			CacheOperationsTotal,
			OutlierRejectionsTotal,
			OutlierFallbacksTotal,
			SearchesTotal,
			SearchDuration,
			JobsTotal,
			JobQueueDepth,
			HTTPRequestsTotal,
			HTTPRequestDuration,
		)
	})
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ServeHTTP serves Prometheus metrics on the specified address and path.
func ServeHTTP(addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordSourceFetch records one strategy invocation.
func RecordSourceFetch(source, outcome string, prices int, duration time.Duration) {
	SourceFetchesTotal.WithLabelValues(source, outcome).Inc()
	SourcePricesTotal.WithLabelValues(source).Add(float64(prices))
	SourceFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordCacheOperation records a cache operation result (hit, miss, ok, unavailable, error).
func RecordCacheOperation(operation, result string) {
	CacheOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordOutlierRejection records prices dropped by a filter stage.
func RecordOutlierRejection(stage string, count int) {
	if count <= 0 {
		return
	}
	OutlierRejectionsTotal.WithLabelValues(stage).Add(float64(count))
}

// RecordOutlierFallback records a synthetic fallback value.
func RecordOutlierFallback(kind string) {
	OutlierFallbacksTotal.WithLabelValues(kind).Inc()
}

// RecordSearch records a finished price search.
func RecordSearch(itemType, outcome string, duration time.Duration) {
	SearchesTotal.WithLabelValues(itemType, outcome).Inc()
	SearchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordJob records a background job status change.
func RecordJob(status string) {
	JobsTotal.WithLabelValues(status).Inc()
}

// SetJobQueueDepth records the number of queued jobs.
func SetJobQueueDepth(depth int) {
	JobQueueDepth.Set(float64(depth))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
