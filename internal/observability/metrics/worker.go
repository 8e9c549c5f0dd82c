package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	jobsTotal    *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	jobsInFlight *prometheus.GaugeVec
	queueLag     *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claimver",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Total queue jobs processed by kind and status.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"kind", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "claimver",
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Queue job processing duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"kind"},
	)
	jobsInFlight := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "claimver",
			Subsystem: "worker",
			Name:      "jobs_in_flight",
			Help:      "Number of jobs currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"kind"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "claimver",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between job enqueue and pickup.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"kind"},
	)

	registry.MustRegister(jobsTotal, jobDuration, jobsInFlight, queueLag)

	return &WorkerMetrics{
		registry:     registry,
		jobsTotal:    jobsTotal,
		jobDuration:  jobDuration,
		jobsInFlight: jobsInFlight,
		queueLag:     queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveJob wraps one job execution. Status is "ok" or "error" based on
// the returned error.
func (m *WorkerMetrics) ObserveJob(kind string, fn func() error) error {
	m.jobsInFlight.WithLabelValues(kind).Inc()
	start := time.Now()

	err := fn()

	m.jobsInFlight.WithLabelValues(kind).Dec()
	m.jobDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
	}
	m.jobsTotal.WithLabelValues(kind, status).Inc()
	return err
}

func (m *WorkerMetrics) ObserveQueueLag(kind string, enqueuedAt time.Time) {
	if enqueuedAt.IsZero() {
		return
	}
	lag := time.Since(enqueuedAt)
	if lag < 0 {
		lag = 0
	}
	m.queueLag.WithLabelValues(kind).Observe(lag.Seconds())
}
