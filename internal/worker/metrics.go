package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry          *prometheus.Registry
	jobsTotal         *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	activeJobs        prometheus.Gauge
	variantsTotal     *prometheus.CounterVec
	bytesWrittenTotal prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelgate_worker_jobs_total",
			Help: "Total prewarm jobs by final status.",
		}, []string{"status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelgate_worker_job_duration_seconds",
			Help:    "Total processing duration for each prewarm job.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pixelgate_worker_active_jobs",
			Help: "Current number of active prewarm jobs.",
		}),
		variantsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelgate_worker_variants_total",
			Help: "Prewarm variant outcomes.",
		}, []string{"outcome"}),
		bytesWrittenTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelgate_worker_bytes_written_total",
			Help: "Total transformed bytes produced by prewarm jobs.",
		}),
	}

	registry.MustRegister(
		m.jobsTotal,
		m.jobDuration,
		m.activeJobs,
		m.variantsTotal,
		m.bytesWrittenTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
