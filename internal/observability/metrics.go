package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	xpAwarded       *prometheus.CounterVec
	badgesGranted   prometheus.Counter
	accessDenied    *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skillforge_http_requests_total",
		Help: "HTTP requests partitioned by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skillforge_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	xpAwarded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skillforge_xp_awarded_total",
		Help: "XP points awarded, partitioned by category.",
	}, []string{"category"})
	badgesGranted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skillforge_badges_granted_total",
		Help: "Badges granted to users.",
	})
	accessDenied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skillforge_access_denied_total",
		Help: "Authorization denials partitioned by reason.",
	}, []string{"reason"})
	registry.MustRegister(requests, duration, xpAwarded, badgesGranted, accessDenied)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		xpAwarded:       xpAwarded,
		badgesGranted:   badgesGranted,
		accessDenied:    accessDenied,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// AddXPAwarded records XP credited to any user's record.
func (m *Metrics) AddXPAwarded(category string, amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.xpAwarded.WithLabelValues(category).Add(float64(amount))
}

// IncBadgeGranted records a successful badge grant.
func (m *Metrics) IncBadgeGranted() {
	if m == nil {
		return
	}
	m.badgesGranted.Inc()
}

// IncAccessDenied records a rejected authorization check.
func (m *Metrics) IncAccessDenied(reason string) {
	if m == nil {
		return
	}
	m.accessDenied.WithLabelValues(reason).Inc()
}

// Registerer exposes the registry for registering custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
