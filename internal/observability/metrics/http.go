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
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	routingDecisionsTotal *prometheus.CounterVec
	routingFallbackTotal  *prometheus.CounterVec
	attributionsTotal     *prometheus.CounterVec
	handoffsTotal         *prometheus.CounterVec
	preferenceWritesTotal *prometheus.CounterVec
	usageExportsTotal     *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "switchboard",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "switchboard",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "switchboard",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	routingDecisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "switchboard",
			Subsystem: "routing",
			Name:      "decisions_total",
			Help:      "Total routing decisions by context, preferred agent and mode.",
		},
		[]string{"service", "context", "agent", "mode"},
	)
	routingFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "switchboard",
			Subsystem: "routing",
			Name:      "fallback_total",
			Help:      "Total routing decisions where the manual relevance filter was waived.",
		},
		[]string{"service", "context"},
	)
	attributionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "switchboard",
			Subsystem: "attribution",
			Name:      "messages_total",
			Help:      "Total attributed messages by agent and status.",
		},
		[]string{"service", "agent", "status"},
	)
	handoffsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "switchboard",
			Subsystem: "attribution",
			Name:      "handoffs_total",
			Help:      "Total recorded agent handoffs by receiving agent.",
		},
		[]string{"service", "to_agent"},
	)
	preferenceWritesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "switchboard",
			Subsystem: "preferences",
			Name:      "writes_total",
			Help:      "Total preference updates and resets by operation.",
		},
		[]string{"service", "operation"},
	)
	usageExportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "switchboard",
			Subsystem: "threads",
			Name:      "usage_exports_total",
			Help:      "Total usage report downloads by status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		routingDecisionsTotal,
		routingFallbackTotal,
		attributionsTotal,
		handoffsTotal,
		preferenceWritesTotal,
		usageExportsTotal,
	)

	return &HTTPServerMetrics{
		registry:              registry,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		routingDecisionsTotal: routingDecisionsTotal,
		routingFallbackTotal:  routingFallbackTotal,
		attributionsTotal:     attributionsTotal,
		handoffsTotal:         handoffsTotal,
		preferenceWritesTotal: preferenceWritesTotal,
		usageExportsTotal:     usageExportsTotal,
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
	case strings.HasPrefix(path, "/v1/threads/"):
		return "/v1/threads/{thread_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordRoutingDecision(service, context, agent, mode string, fallback bool) {
	if mode == "" {
		mode = "unknown"
	}
	m.routingDecisionsTotal.WithLabelValues(service, context, agent, mode).Inc()
	if fallback {
		m.routingFallbackTotal.WithLabelValues(service, context).Inc()
	}
}

func (m *HTTPServerMetrics) RecordAttribution(service, agent string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	if agent == "" {
		agent = "unknown"
	}
	m.attributionsTotal.WithLabelValues(service, agent, status).Inc()
}

func (m *HTTPServerMetrics) RecordHandoff(service, toAgent string) {
	if toAgent == "" {
		toAgent = "unknown"
	}
	m.handoffsTotal.WithLabelValues(service, toAgent).Inc()
}

func (m *HTTPServerMetrics) RecordPreferenceWrite(service, operation string) {
	if operation == "" {
		operation = "unknown"
	}
	m.preferenceWritesTotal.WithLabelValues(service, operation).Inc()
}

func (m *HTTPServerMetrics) RecordUsageExport(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.usageExportsTotal.WithLabelValues(service, status).Inc()
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
