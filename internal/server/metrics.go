package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsPath serves the Prometheus exposition.
const MetricsPath = "/metrics"

type metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	sessions prometheus.Counter
	updates  *prometheus.CounterVec
	resets   prometheus.Counter
}

// newMetrics registers the server collectors on a private registry, so two
// servers in one process never collide.
func newMetrics(hub *Hub) *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brickhunt",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "brickhunt",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brickhunt",
			Name:      "sessions_created_total",
			Help:      "Sessions created.",
		}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brickhunt",
			Name:      "found_updates_total",
			Help:      "Found-quantity updates by outcome.",
		}, []string{"outcome"}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brickhunt",
			Name:      "session_resets_total",
			Help:      "Whole-session resets.",
		}),
	}
	reg.MustRegister(
		m.requests, m.duration, m.sessions, m.updates, m.resets,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "brickhunt",
			Name:      "subscribers",
			Help:      "Open realtime subscribers across all sessions.",
		}, func() float64 { return float64(hub.Total()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "brickhunt",
			Name:      "subscribers_dropped_total",
			Help:      "Subscribers dropped for falling behind.",
		}, func() float64 { return float64(hub.Dropped()) }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// observe records one handled request. The route label is the path template,
// which keeps capability tokens out of label values.
func (m *metrics) observe(r *http.Request, status int, d time.Duration) {
	route := "unmatched"
	if cur := mux.CurrentRoute(r); cur != nil {
		if tpl, err := cur.GetPathTemplate(); err == nil {
			route = tpl
		}
	}
	m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(r.Method, route).Observe(d.Seconds())
}
