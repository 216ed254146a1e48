package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every recorder is a no-op then.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	projections       *prometheus.CounterVec
	aiAttempts        *prometheus.CounterVec
	aiDuration        *prometheus.HistogramVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	debounceFires     prometheus.Counter
	staleResponses    prometheus.Counter
	activeSessions    prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		projections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "projections_total",
			Help: "Projections served by source (ai, cache, heuristic) and outcome.",
		}, []string{"source", "outcome"}),
		aiAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_attempts_total",
			Help: "Calls to the generative model by provider and outcome.",
		}, []string{"provider", "outcome"}),
		aiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ai_attempt_duration_seconds",
			Help:    "Latency of generative model calls by provider.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"provider"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "projection_cache_hits_total",
			Help: "Total projection cache hits observed.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "projection_cache_misses_total",
			Help: "Total projection cache misses observed.",
		}),
		debounceFires: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_requests_total",
			Help: "Projection requests issued after a debounce window elapsed.",
		}),
		staleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_stale_responses_total",
			Help: "Projection responses discarded because a newer request superseded them.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_active_sessions",
			Help: "Open projection sessions.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.projections,
		m.aiAttempts,
		m.aiDuration,
		m.cacheHits,
		m.cacheMisses,
		m.debounceFires,
		m.staleResponses,
		m.activeSessions,
	)

	return m
}

// Middleware records request counts and latency by matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Projection(source, outcome string) {
	if m == nil {
		return
	}
	m.projections.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) AIAttempt(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.aiAttempts.WithLabelValues(provider, outcome).Inc()
	m.aiDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) RequestFired() {
	if m == nil {
		return
	}
	m.debounceFires.Inc()
}

func (m *Metrics) StaleResponse() {
	if m == nil {
		return
	}
	m.staleResponses.Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}
