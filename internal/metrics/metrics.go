// Package metrics implements supervisor.Metrics with real Prometheus
// counters and exposes an HTTP-instrumentation wrapper for the API router.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every hearthkeep-specific collector.
var Registry = prometheus.NewRegistry()

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hearthkeep",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hearthkeep",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hearthkeep",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "path"})

	spawnsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hearthkeep",
		Subsystem: "supervisor",
		Name:      "spawns_total",
		Help:      "Total spawn attempts, by service and outcome.",
	}, []string{"service_id", "outcome"})

	killsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hearthkeep",
		Subsystem: "supervisor",
		Name:      "kills_total",
		Help:      "Total force-kills performed, by service.",
	}, []string{"service_id"})

	autoRestartsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hearthkeep",
		Subsystem: "supervisor",
		Name:      "auto_restarts_total",
		Help:      "Total automatic restarts performed, by service.",
	}, []string{"service_id"})

	rateLimitRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hearthkeep",
		Subsystem: "ratelimit",
		Name:      "rejections_total",
		Help:      "Total requests rejected by the sliding-window limiter, by endpoint.",
	}, []string{"endpoint"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		spawnsTotal,
		killsTotal,
		autoRestartsTotal,
		rateLimitRejections,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes the registry in the Prometheus text exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request-count/duration
// metrics, skipping /metrics itself to avoid a feedback loop.
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

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

func RecordRateLimitRejection(endpoint string) {
	rateLimitRejections.WithLabelValues(endpoint).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// canonicalPath collapses a service id out of a /services/:id/... path so
// the label cardinality stays bounded.
func canonicalPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "services" {
		parts[1] = ":id"
	}
	return "/" + strings.Join(parts, "/")
}

// SupervisorMetrics implements supervisor.Metrics with the collectors above
// (kept as a distinct type, not a direct import of internal/supervisor from
// this file's package-level vars, to avoid coupling registration order to
// the interface's existence).
type SupervisorMetrics struct{}

func (SupervisorMetrics) SpawnSucceeded(serviceID string) {
	spawnsTotal.WithLabelValues(serviceID, "success").Inc()
}

func (SupervisorMetrics) SpawnFailed(serviceID string) {
	spawnsTotal.WithLabelValues(serviceID, "failure").Inc()
}

func (SupervisorMetrics) Killed(serviceID string) {
	killsTotal.WithLabelValues(serviceID).Inc()
}

func (SupervisorMetrics) AutoRestarted(serviceID string) {
	autoRestartsTotal.WithLabelValues(serviceID).Inc()
}
