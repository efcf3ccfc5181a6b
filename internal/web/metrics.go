package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hpungsan/leadvault/internal/store"
)

// leadCollector exposes collection metrics computed at scrape time.
type leadCollector struct {
	store    *store.Store
	total    *prometheus.Desc
	starred  *prometheus.Desc
	lastWeek *prometheus.Desc
}

func newLeadCollector(st *store.Store) *leadCollector {
	return &leadCollector{
		store:    st,
		total:    prometheus.NewDesc("leadvault_leads_total", "Number of saved leads.", nil, nil),
		starred:  prometheus.NewDesc("leadvault_leads_starred", "Number of starred leads.", nil, nil),
		lastWeek: prometheus.NewDesc("leadvault_leads_last_week", "Number of leads created in the last 7 days.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *leadCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.starred
	ch <- c.lastWeek
}

// Collect implements prometheus.Collector.
func (c *leadCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.store.Metrics()
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(m.Total))
	ch <- prometheus.MustNewConstMetric(c.starred, prometheus.GaugeValue, float64(m.StarredCount))
	ch <- prometheus.MustNewConstMetric(c.lastWeek, prometheus.GaugeValue, float64(m.LastWeekCount))
}

// Metrics holds the registry served at /metrics.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the lead collector and HTTP request metrics.
func NewMetrics(st *store.Store) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadvault_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leadvault_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(newLeadCollector(st), m.requests, m.duration)
	return m
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
