package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	verificationsTotal   *prometheus.CounterVec
	verificationDuration *prometheus.HistogramVec
	conflictsTotal       *prometheus.CounterVec
	cacheEventsTotal     *prometheus.CounterVec
	evidenceRetrieved    *prometheus.HistogramVec
	droppedPairsTotal    *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claimver",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "claimver",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "claimver",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	verificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claimver",
			Subsystem: "pipeline",
			Name:      "verifications_total",
			Help:      "Total completed verifications by verdict and strategy.",
		},
		[]string{"service", "verdict", "strategy"},
	)
	verificationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "claimver",
			Subsystem: "pipeline",
			Name:      "verification_duration_seconds",
			Help:      "End-to-end verification duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	conflictsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claimver",
			Subsystem: "pipeline",
			Name:      "conflicts_total",
			Help:      "Total verifications that found conflicting evidence.",
		},
		[]string{"service", "strategy"},
	)
	cacheEventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claimver",
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Result cache hits and misses.",
		},
		[]string{"service", "event"},
	)
	evidenceRetrieved := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "claimver",
			Subsystem: "pipeline",
			Name:      "evidence_retrieved",
			Help:      "Distribution of scored evidence passages per verification.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	droppedPairsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claimver",
			Subsystem: "pipeline",
			Name:      "nli_dropped_pairs_total",
			Help:      "Evidence pairs dropped because scoring failed.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		verificationsTotal,
		verificationDuration,
		conflictsTotal,
		cacheEventsTotal,
		evidenceRetrieved,
		droppedPairsTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		verificationsTotal:   verificationsTotal,
		verificationDuration: verificationDuration,
		conflictsTotal:       conflictsTotal,
		cacheEventsTotal:     cacheEventsTotal,
		evidenceRetrieved:    evidenceRetrieved,
		droppedPairsTotal:    droppedPairsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/claims/") && path != "/v1/claims/verify":
		return "/v1/claims/{claim_id}"
	case strings.HasPrefix(path, "/v1/evidence/"):
		return "/v1/evidence/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordVerification(service string, result *domain.PipelineResult) {
	if result == nil {
		return
	}
	verdict := result.Verdict
	m.verificationsTotal.WithLabelValues(service, string(verdict.Label), string(verdict.Strategy)).Inc()
	m.verificationDuration.WithLabelValues(service).Observe(result.Duration.Seconds())
	m.evidenceRetrieved.WithLabelValues(service).Observe(float64(len(result.Evidence)))
	if verdict.Conflict {
		m.conflictsTotal.WithLabelValues(service, string(verdict.Strategy)).Inc()
	}
}

func (m *HTTPServerMetrics) RecordCacheEvent(service string, hit bool) {
	event := "miss"
	if hit {
		event = "hit"
	}
	m.cacheEventsTotal.WithLabelValues(service, event).Inc()
}

func (m *HTTPServerMetrics) RecordDroppedPairs(service string, dropped int) {
	if dropped <= 0 {
		return
	}
	m.droppedPairsTotal.WithLabelValues(service).Add(float64(dropped))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
