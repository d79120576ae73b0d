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
	registry           *prometheus.Registry
	handler            http.Handler
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	resolutionsTotal   *prometheus.CounterVec
	resolutionDuration prometheus.Histogram
	invalidationsTotal prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "featurekit_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "featurekit_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "featurekit_resolutions_total",
		Help: "Permission resolutions by cache outcome.",
	}, []string{"outcome"})
	resolutionDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "featurekit_resolution_duration_seconds",
		Help:    "Duration of cache-miss permission resolutions.",
		Buckets: prometheus.DefBuckets,
	})
	invalidations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "featurekit_invalidations_total",
		Help: "Resolution cache entries evicted by mutation fan-out.",
	})
	registry.MustRegister(requests, duration, resolutions, resolutionDuration, invalidations)
	return &Metrics{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:      requests,
		requestDuration:    duration,
		resolutionsTotal:   resolutions,
		resolutionDuration: resolutionDuration,
		invalidationsTotal: invalidations,
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

// Middleware records metrics for every HTTP request.
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

// ResolutionCacheHit counts a resolution served from the cache.
func (m *Metrics) ResolutionCacheHit() {
	if m == nil {
		return
	}
	m.resolutionsTotal.WithLabelValues("hit").Inc()
}

// ResolutionCacheMiss counts a resolution rebuilt from the providers.
func (m *Metrics) ResolutionCacheMiss() {
	if m == nil {
		return
	}
	m.resolutionsTotal.WithLabelValues("miss").Inc()
}

// ObserveResolution records how long a cache-miss resolution took.
func (m *Metrics) ObserveResolution(d time.Duration) {
	if m == nil {
		return
	}
	m.resolutionDuration.Observe(d.Seconds())
}

// InvalidationsAdd counts cache entries evicted by mutation fan-out.
func (m *Metrics) InvalidationsAdd(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.invalidationsTotal.Add(float64(n))
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
