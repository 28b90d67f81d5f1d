// Package metrics exposes Prometheus collectors for the HTTP API, logins, AI routing and background work.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/biasharahub/biashara/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	logins        *prometheus.CounterVec
	aiRoutes      *prometheus.CounterVec
	aiDuration    *prometheus.HistogramVec
	rateLimited   *prometheus.CounterVec
	cleanupDelete *prometheus.CounterVec
	tasksDropped  *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "biashara",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "biashara",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "biashara",
			Name:      "login_attempts_total",
			Help:      "Login attempts by realm and outcome.",
		}, []string{"realm", "outcome"}),
		aiRoutes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "biashara",
			Name:      "ai_routed_messages_total",
			Help:      "Chat messages by answering backend.",
		}, []string{"backend", "failed"}),
		aiDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "biashara",
			Name:      "ai_route_duration_seconds",
			Help:      "End-to-end routing latency per backend.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10, 20, 30},
		}, []string{"backend"}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "biashara",
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by a rate limiter.",
		}, []string{"limiter"}),
		cleanupDelete: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "biashara",
			Name:      "cleanup_removed_total",
			Help:      "Rows or entries removed by housekeeping jobs.",
		}, []string{"job"}),
		tasksDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "biashara",
			Name:      "background_tasks_dropped_total",
			Help:      "Background tasks discarded because the dispatcher was saturated or closed.",
		}, []string{"task"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveLogin(realm models.Realm, outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(string(realm), outcome).Inc()
}

func (m *Metrics) ObserveRoute(backend string, failed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.aiRoutes.WithLabelValues(backend, strconv.FormatBool(failed)).Inc()
	m.aiDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
}

func (m *Metrics) RateLimited(limiter string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(limiter).Inc()
}

func (m *Metrics) CleanupRemoved(job string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.cleanupDelete.WithLabelValues(job).Add(float64(n))
}

func (m *Metrics) TaskDropped(task string) {
	if m == nil {
		return
	}
	m.tasksDropped.WithLabelValues(task).Inc()
}
