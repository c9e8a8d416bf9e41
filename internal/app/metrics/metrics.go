// Package metrics exposes operational Prometheus collectors for the engine.
// Dashboard-facing aggregates live in services/insights; these counters are
// for operators.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the engine-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "collab_engine",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collab_engine",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "collab_engine",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collab_engine",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Total number of applied request status transitions.",
		},
		[]string{"from", "to"},
	)

	paymentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collab_engine",
			Subsystem: "payments",
			Name:      "processed_total",
			Help:      "Total number of payment attempts.",
		},
		[]string{"success"},
	)

	syncEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collab_engine",
			Subsystem: "sync",
			Name:      "events_total",
			Help:      "Total number of realtime events processed.",
		},
		[]string{"kind"},
	)

	syncReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "collab_engine",
			Subsystem: "sync",
			Name:      "reconnects_total",
			Help:      "Total number of realtime resubscription attempts.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		transitions,
		paymentsProcessed,
		syncEvents,
		syncReconnects,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordTransition records one applied status transition.
func RecordTransition(from, to string) {
	transitions.WithLabelValues(from, to).Inc()
}

// RecordPayment records the outcome of a payment attempt.
func RecordPayment(success bool) {
	result := "false"
	if success {
		result = "true"
	}
	paymentsProcessed.WithLabelValues(result).Inc()
}

// RecordSyncEvent records one processed realtime event by kind.
func RecordSyncEvent(kind string) {
	syncEvents.WithLabelValues(kind).Inc()
}

// RecordSyncReconnect records a resubscription attempt after a dropped
// channel.
func RecordSyncReconnect() {
	syncReconnects.Inc()
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "requests" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/requests"
	}
	if len(parts) == 2 {
		return "/requests/:id"
	}
	return "/requests/:id/" + parts[2]
}
