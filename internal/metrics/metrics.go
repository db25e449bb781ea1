// Package metrics holds the Prometheus collectors of the service on a private
// registry, exposed at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	GamesCreated      prometheus.Counter
	GamesPlayed       prometheus.Counter
	GamesCompleted    *prometheus.CounterVec
	PlaySessions      prometheus.Gauge
	AnalyticsRecorded *prometheus.CounterVec
	AnalyticsDropped  prometheus.Counter
	AnalyticsFailed   prometheus.Counter
	RequestDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		GamesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ayangquest_games_created_total",
			Help: "Games persisted by the builder.",
		}),
		GamesPlayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ayangquest_games_played_total",
			Help: "Play sessions that loaded a game.",
		}),
		GamesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ayangquest_games_completed_total",
			Help: "Finished attempts by result.",
		}, []string{"result"}),
		PlaySessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ayangquest_play_sessions",
			Help: "Live play sessions.",
		}),
		AnalyticsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ayangquest_analytics_events_total",
			Help: "Analytics events written, by kind.",
		}, []string{"kind"}),
		AnalyticsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ayangquest_analytics_dropped_total",
			Help: "Analytics events dropped because the queue was full.",
		}),
		AnalyticsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ayangquest_analytics_failed_total",
			Help: "Analytics events that failed to write.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ayangquest_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.GamesCreated,
		m.GamesPlayed,
		m.GamesCompleted,
		m.PlaySessions,
		m.AnalyticsRecorded,
		m.AnalyticsDropped,
		m.AnalyticsFailed,
		m.RequestDuration,
	)
	return m
}

// Completed counts a finished attempt.
func (m *Metrics) Completed(win bool) {
	result := "lose"
	if win {
		result = "win"
	}
	m.GamesCompleted.WithLabelValues(result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Middleware observes request latency labelled with the chi route pattern,
// so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
