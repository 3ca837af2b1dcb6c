// Package metrics defines the Prometheus metrics of the site server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Search metrics
	SearchesTotal  *prometheus.CounterVec
	SearchDuration *prometheus.HistogramVec
	SearchMatches  prometheus.Histogram

	// Site metrics
	ChartsTotal       prometheus.Gauge
	IndexEventsTotal  *prometheus.CounterVec
	DrawingSavesTotal *prometheus.CounterVec
}

// New creates and registers all metrics on registry. A nil registry gets a
// fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atlas_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "atlas_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atlas_searches_total",
				Help: "Total number of evaluated searches",
			},
			[]string{"mode"},
		),
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "atlas_search_duration_seconds",
				Help:    "Search evaluation duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"mode"},
		),
		SearchMatches: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "atlas_search_matches",
				Help:    "Number of charts matched per search",
				Buckets: prometheus.ExponentialBuckets(1, 4, 6),
			},
		),
		ChartsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "atlas_charts_total",
				Help: "Number of charts in the published dataset",
			},
		),
		IndexEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atlas_index_events_total",
				Help: "Total number of chart index changes",
			},
			[]string{"kind"},
		),
		DrawingSavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atlas_drawing_saves_total",
				Help: "Total number of drawing save requests",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SearchesTotal,
		m.SearchDuration,
		m.SearchMatches,
		m.ChartsTotal,
		m.IndexEventsTotal,
		m.DrawingSavesTotal,
	)
	return m
}

// ObserveSearch records one evaluated search.
func (m *Metrics) ObserveSearch(mode string, d time.Duration, matches int) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(mode).Inc()
	m.SearchDuration.WithLabelValues(mode).Observe(d.Seconds())
	m.SearchMatches.Observe(float64(matches))
}

// SetCharts records the size of the published dataset.
func (m *Metrics) SetCharts(n int) {
	if m == nil {
		return
	}
	m.ChartsTotal.Set(float64(n))
}

// IndexEvent counts one index change of the given kind.
func (m *Metrics) IndexEvent(kind string) {
	if m == nil {
		return
	}
	m.IndexEventsTotal.WithLabelValues(kind).Inc()
}

// DrawingSaved counts a drawing save with outcome "ok" or "error".
func (m *Metrics) DrawingSaved(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.DrawingSavesTotal.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers behind the middleware flush.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Middleware instruments requests, labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
