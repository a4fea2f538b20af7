package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wheel"

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
	rejectedTotal   *prometheus.CounterVec

	queryTotal       *prometheus.CounterVec
	queryDuration    *prometheus.HistogramVec
	queryResults     *prometheus.HistogramVec
	queryCacheHits   *prometheus.CounterVec
	documentsTotal   *prometheus.CounterVec
	documentChunks   *prometheus.HistogramVec
	modeSwitchTotal  *prometheus.CounterVec
	cacheClearsTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	m := &HTTPServerMetrics{
		registry: prometheus.NewRegistry(),

		requestTotal: counterVec("http", "requests_total",
			"Total HTTP requests processed.", "service", "method", "path", "status"),
		requestDuration: histogramVec("http", "request_duration_seconds",
			"HTTP request duration in seconds.", prometheus.DefBuckets, "service", "method", "path"),
		requestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		rejectedTotal: counterVec("http", "rejected_total",
			"Requests rejected by traffic control, by reason.", "service", "reason"),

		queryTotal: counterVec("query", "requests_total",
			"Total retrieval queries by mode, strategy and outcome.", "service", "mode", "strategy", "status"),
		queryDuration: histogramVec("query", "duration_seconds",
			"Retrieval latency in seconds by mode.", []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10}, "service", "mode"),
		queryResults: histogramVec("query", "results",
			"Distribution of returned results per query.", []float64{0, 1, 2, 3, 5, 8, 10, 20, 50}, "service", "mode"),
		queryCacheHits: counterVec("query", "cache_hits_total",
			"Queries answered from the response cache.", "service", "mode"),

		documentsTotal: counterVec("documents", "processed_total",
			"Total documents processed by mode and status.", "service", "mode", "status"),
		documentChunks: histogramVec("documents", "chunks",
			"Chunks produced per successfully processed document.", []float64{1, 2, 5, 10, 20, 50, 100, 250, 500}, "service", "mode"),

		modeSwitchTotal:  counterVec("mode", "switches_total", "Default mode switches by target mode.", "service", "mode"),
		cacheClearsTotal: counterVec("cache", "clears_total", "Administrative cache flushes.", "service"),
	}

	m.registry.MustRegister(
		m.requestTotal, m.requestDuration, m.requestInFlight, m.rejectedTotal,
		m.queryTotal, m.queryDuration, m.queryResults, m.queryCacheHits,
		m.documentsTotal, m.documentChunks, m.modeSwitchTotal, m.cacheClearsTotal,
	)
	return m
}

func counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func histogramVec(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *HTTPServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()
		next.ServeHTTP(rec, r)

		path := normalizePath(r.URL.Path)
		m.requestTotal.WithLabelValues(service, r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(started).Seconds())
	})
}

// normalizePath folds id-bearing paths so label cardinality stays bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/documents/") && path != "/api/v1/documents/upload":
		return "/api/v1/documents/{id}"
	case strings.HasPrefix(path, "/api/v1/tasks/"):
		return "/api/v1/tasks/{id}"
	case strings.HasPrefix(path, "/api/v1/experiments/"):
		if strings.HasSuffix(path, "/results") {
			return "/api/v1/experiments/{id}/results"
		}
		return "/api/v1/experiments/{id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordRejected(service, reason string) {
	m.rejectedTotal.WithLabelValues(service, reason).Inc()
}

func (m *HTTPServerMetrics) RecordQuery(service, mode, strategy string, resultCount int, duration time.Duration, fromCache, degraded bool) {
	if mode == "" {
		mode = "unknown"
	}
	if strategy == "" {
		strategy = "unknown"
	}
	status := "success"
	if degraded {
		status = "degraded"
	}
	m.queryTotal.WithLabelValues(service, mode, strategy, status).Inc()
	m.queryDuration.WithLabelValues(service, mode).Observe(duration.Seconds())
	m.queryResults.WithLabelValues(service, mode).Observe(float64(resultCount))
	if fromCache {
		m.queryCacheHits.WithLabelValues(service, mode).Inc()
	}
}

func (m *HTTPServerMetrics) RecordDocument(service, mode, status string, chunks int) {
	if mode == "" {
		mode = "unknown"
	}
	m.documentsTotal.WithLabelValues(service, mode, status).Inc()
	if status == "success" {
		m.documentChunks.WithLabelValues(service, mode).Observe(float64(chunks))
	}
}

func (m *HTTPServerMetrics) RecordModeSwitch(service, mode string) {
	m.modeSwitchTotal.WithLabelValues(service, mode).Inc()
}

func (m *HTTPServerMetrics) RecordCacheClear(service string) {
	m.cacheClearsTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
