package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values shared by the counters below
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
	OutcomeEmpty   = "empty"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Index maintenance
	RebuildsTotal                   *prometheus.CounterVec
	RebuildDuration                 *prometheus.HistogramVec
	CascadeFanout                   prometheus.Histogram
	CascadeEnumerationFailuresTotal prometheus.Counter
	StaleRepresentationsTotal       *prometheus.CounterVec

	// Tokenizer
	TokenizerInitTotal    *prometheus.CounterVec
	TokenizerInitDuration *prometheus.HistogramVec

	// Search
	SearchRequestsTotal *prometheus.CounterVec
	SearchDuration      prometheus.Histogram
	QueryCacheHitsTotal prometheus.Counter
	QueryCacheMissTotal prometheus.Counter

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	// Database metrics
	DBConnectionsActive    prometheus.Gauge
	DBConnectionsIdle      prometheus.Gauge
	DBConnectionsWaitCount prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kensaku_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kensaku_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kensaku_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kensaku_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		RebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kensaku_rebuilds_total",
				Help: "Search representation rebuilds by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		RebuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kensaku_rebuild_duration_seconds",
				Help:    "Time to rebuild and store one search representation",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
			},
			[]string{"trigger"},
		),
		CascadeFanout: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kensaku_cascade_fanout",
				Help:    "Number of dependent documents enumerated per category rename",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		CascadeEnumerationFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kensaku_cascade_enumeration_failures_total",
				Help: "Category renames whose dependent documents could not be listed",
			},
		),
		StaleRepresentationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kensaku_stale_representations_total",
				Help: "Writes that left a search representation stale or absent",
			},
			[]string{"reason"},
		),

		TokenizerInitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kensaku_tokenizer_init_total",
				Help: "Tokenizer dictionary build attempts",
			},
			[]string{"variant", "outcome"},
		),
		TokenizerInitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kensaku_tokenizer_init_duration_seconds",
				Help:    "Tokenizer dictionary build duration in seconds",
				Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"variant"},
		),

		SearchRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kensaku_search_requests_total",
				Help: "Search requests by outcome",
			},
			[]string{"outcome"},
		),
		SearchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kensaku_search_duration_seconds",
				Help:    "Search duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		QueryCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kensaku_query_cache_hits_total",
				Help: "Query translations served from cache",
			},
		),
		QueryCacheMissTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kensaku_query_cache_misses_total",
				Help: "Query translations that had to tokenize",
			},
		),

		// Storage metrics
		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kensaku_storage_operations_total",
				Help: "Total number of storage operations",
			},
			[]string{"operation", "backend", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kensaku_storage_operation_duration_seconds",
				Help:    "Storage operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "kensaku_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "kensaku_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "kensaku_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.RebuildsTotal,
		m.RebuildDuration,
		m.CascadeFanout,
		m.CascadeEnumerationFailuresTotal,
		m.StaleRepresentationsTotal,
		m.TokenizerInitTotal,
		m.TokenizerInitDuration,
		m.SearchRequestsTotal,
		m.SearchDuration,
		m.QueryCacheHitsTotal,
		m.QueryCacheMissTotal,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
	)

	return m
}

// The observe helpers below accept a nil receiver so components can run
// without metrics in tests and tools.

// ObserveRebuild records one representation rebuild
func (m *Metrics) ObserveRebuild(trigger, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RebuildsTotal.WithLabelValues(trigger, outcome).Inc()
	m.RebuildDuration.WithLabelValues(trigger).Observe(elapsed.Seconds())
}

// ObserveCascade records the dependent count of one cascade
func (m *Metrics) ObserveCascade(dependents int) {
	if m == nil {
		return
	}
	m.CascadeFanout.Observe(float64(dependents))
}

// IncCascadeEnumerationFailure counts a cascade that could not list dependents
func (m *Metrics) IncCascadeEnumerationFailure() {
	if m == nil {
		return
	}
	m.CascadeEnumerationFailuresTotal.Inc()
}

// IncStale counts a representation left stale by a write
func (m *Metrics) IncStale(reason string) {
	if m == nil {
		return
	}
	m.StaleRepresentationsTotal.WithLabelValues(reason).Inc()
}

// ObserveTokenizerInit records a dictionary build attempt
func (m *Metrics) ObserveTokenizerInit(variant string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.TokenizerInitTotal.WithLabelValues(variant, outcome).Inc()
	m.TokenizerInitDuration.WithLabelValues(variant).Observe(elapsed.Seconds())
}

// ObserveSearch records a search request
func (m *Metrics) ObserveSearch(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SearchRequestsTotal.WithLabelValues(outcome).Inc()
	m.SearchDuration.Observe(elapsed.Seconds())
}

// ObserveQueryCache records a translator cache lookup
func (m *Metrics) ObserveQueryCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.QueryCacheHitsTotal.Inc()
	} else {
		m.QueryCacheMissTotal.Inc()
	}
}

// ObserveStorage records a storage operation
func (m *Metrics) ObserveStorage(operation, backend string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := OutcomeSuccess
	if err != nil {
		status = OutcomeFailure
	}
	m.StorageOperationsTotal.WithLabelValues(operation, backend, status).Inc()
	m.StorageOperationDuration.WithLabelValues(operation, backend).Observe(elapsed.Seconds())
}

// UpdateDBStats copies connection pool statistics into the gauges
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeTemplate keeps label cardinality bounded by using the mux route
// pattern (/documents/{id}) instead of the raw path.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Serve the request
			next.ServeHTTP(rw, r)

			path := routeTemplate(r)
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, path).Observe(float64(r.ContentLength))
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
