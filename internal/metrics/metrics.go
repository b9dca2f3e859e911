// Package metrics provides Prometheus metrics for the filey peer server.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filey_http_requests_total",
			Help: "Total number of HTTP requests served to peers",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filey_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Content transfer
	contentBytesServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filey_content_bytes_served_total",
			Help: "Total file bytes streamed to peers",
		},
	)

	contentServesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filey_content_serves_total",
			Help: "Total number of file content responses",
		},
		[]string{"status"},
	)

	// Catalog
	catalogSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "filey_catalog_files",
			Help: "Number of cataloged files by visibility",
		},
		[]string{"visibility"},
	)

	// Discovery
	peerProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filey_peer_probes_total",
			Help: "Total peer probes by result",
		},
		[]string{"result"},
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filey_scan_duration_seconds",
			Help:    "Time to sweep all local subnet candidates",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 30},
		},
	)

	peersFound = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filey_peers_found",
			Help: "Number of peers found by the last scan",
		},
	)

	// Database
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filey_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	// Storage backends
	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filey_storage_operation_duration_seconds",
			Help:    "Storage backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filey_storage_operations_total",
			Help: "Total storage backend operations",
		},
		[]string{"backend", "operation", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordContentServe records a file content response.
func RecordContentServe(bytes int64, success bool) {
	contentBytesServed.Add(float64(bytes))
	contentServesTotal.WithLabelValues(status(success)).Inc()
}

// SetCatalogSize sets the catalog gauges.
func SetCatalogSize(public, private int) {
	catalogSize.WithLabelValues("public").Set(float64(public))
	catalogSize.WithLabelValues("private").Set(float64(private))
}

// RecordPeerProbe records one probe outcome.
func RecordPeerProbe(reachable bool) {
	result := "reachable"
	if !reachable {
		result = "unreachable"
	}
	peerProbesTotal.WithLabelValues(result).Inc()
}

// RecordScan records a finished subnet sweep.
func RecordScan(duration time.Duration, found int) {
	scanDuration.Observe(duration.Seconds())
	peersFound.Set(float64(found))
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// RecordStorageOperation records a storage backend operation.
func RecordStorageOperation(backend, operation string, duration time.Duration, success bool) {
	storageOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	storageOperationsTotal.WithLabelValues(backend, operation, status(success)).Inc()
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

// route collapses file ids so label cardinality stays bounded.
func route(path string) string {
	switch {
	case path == "/info", path == "/files":
		return path
	case strings.HasPrefix(path, "/files/"):
		return "/files/{id}"
	default:
		return "other"
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, route(r.URL.Path), rw.statusCode, time.Since(start))
	})
}
