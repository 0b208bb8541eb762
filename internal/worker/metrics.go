package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry             *prometheus.Registry
	jobsTotal            *prometheus.CounterVec
	jobDuration          *prometheus.HistogramVec
	activeJobs           prometheus.Gauge
	pixelsProcessedTotal prometheus.Counter
	artifactBytesTotal   *prometheus.CounterVec
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
			Name: "toonforge_worker_jobs_total",
			Help: "Total worker jobs by style and final status.",
		}, []string{"style", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "toonforge_worker_job_duration_seconds",
			Help:    "Total processing duration for each worker job.",
			Buckets: prometheus.DefBuckets,
		}, []string{"style", "status"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "toonforge_worker_active_jobs",
			Help: "Current number of active processing jobs in the worker.",
		}),
		pixelsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toonforge_worker_pixels_processed_total",
			Help: "Total output pixels produced across successful jobs.",
		}),
		artifactBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toonforge_worker_artifact_bytes_total",
			Help: "Total artifact bytes written, by quality tier.",
		}, []string{"tier"}),
	}

	registry.MustRegister(
		m.jobsTotal,
		m.jobDuration,
		m.activeJobs,
		m.pixelsProcessedTotal,
		m.artifactBytesTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
