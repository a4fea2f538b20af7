package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	return NewWorkerMetricsOn(prometheus.NewRegistry(), service)
}

// NewWorkerMetricsOn registers the worker collectors on an existing registry,
// so an API process running in-process workers serves them on its /metrics.
func NewWorkerMetricsOn(registry *prometheus.Registry, service string) *WorkerMetrics {
	m := &WorkerMetrics{
		registry: registry,
		processTotal: counterVec("worker", "ingest_tasks_total",
			"Total ingest tasks by mode and status.", "service", "mode", "status"),
		processDuration: histogramVec("worker", "ingest_task_duration_seconds",
			"Ingest task duration in seconds by mode and status.", prometheus.DefBuckets, "service", "mode", "status"),
		processInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "ingest_tasks_in_flight",
			Help:        "Number of ingest tasks being processed.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		queueLag: histogramVec("worker", "queue_lag_seconds",
			"Delay between task submission and processing start.",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600}, "service"),
	}
	registry.MustRegister(m.processTotal, m.processDuration, m.processInFlight, m.queueLag)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartTask() {
	m.processInFlight.Inc()
}

// FinishTask records a finished task. status is the terminal task status,
// or "error" when the task could not be run at all.
func (m *WorkerMetrics) FinishTask(service, mode, status string, duration time.Duration) {
	m.processInFlight.Dec()
	if mode == "" {
		mode = "unknown"
	}
	m.processTotal.WithLabelValues(service, mode, status).Inc()
	m.processDuration.WithLabelValues(service, mode, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
