package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry          *prometheus.Registry
	requestTotal      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	transformTotal    *prometheus.CounterVec
	transformDuration prometheus.Histogram
	cacheLookups      *prometheus.CounterVec
	rateLimitRejected *prometheus.CounterVec
	prewarmEnqueued   prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelgate_api_requests_total",
			Help: "Total HTTP requests handled by the proxy.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelgate_api_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		transformTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelgate_transform_requests_total",
			Help: "Total transform requests by response status.",
		}, []string{"status"}),
		transformDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pixelgate_transform_duration_seconds",
			Help:    "End-to-end duration of cache-miss transforms.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelgate_cache_lookups_total",
			Help: "Cache lookup outcomes for transform requests.",
		}, []string{"result"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelgate_rate_limit_rejections_total",
			Help: "Total requests rejected by rate limiting.",
		}, []string{"route"}),
		prewarmEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelgate_prewarm_jobs_enqueued_total",
			Help: "Total prewarm jobs enqueued.",
		}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.transformTotal,
		m.transformDuration,
		m.cacheLookups,
		m.rateLimitRejected,
		m.prewarmEnqueued,
	)
	return m
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		status := statusLabel(recorder.status)

		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

func statusLabel(status int) string {
	return strconv.Itoa(status)
}

func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/transform"):
		return "/transform"
	case strings.HasPrefix(path, "/v1/prewarm"):
		return "/v1/prewarm"
	case strings.HasPrefix(path, "/healthz"):
		return "/healthz"
	case strings.HasPrefix(path, "/metrics"):
		return "/metrics"
	default:
		return path
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
