package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry prometheus.Gatherer

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Call metrics
	TransitionsTotal   *prometheus.CounterVec
	ExpiriesTotal      *prometheus.CounterVec
	SubscriptionErrors *prometheus.CounterVec
	InvalidRowsTotal   prometheus.Counter
	ActiveSessions     prometheus.Gauge

	// Notification metrics
	NotificationsTotal *prometheus.CounterVec
}

// New creates a Metrics instance registered on reg
func New(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = "meeting_calls"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		TransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "calls",
				Name:      "transitions_total",
				Help:      "Invitation status writes by target status and outcome",
			},
			[]string{"status", "result"}, // result: applied, stale, not_found, error
		),
		ExpiriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "calls",
				Name:      "expiries_total",
				Help:      "Ring windows that elapsed without an answer",
			},
			[]string{"side"},
		),
		SubscriptionErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "calls",
				Name:      "subscription_errors_total",
				Help:      "Snapshots that carried a read error",
			},
			[]string{"side"},
		),
		InvalidRowsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "invalid_rows_total",
				Help:      "Invitation rows dropped from snapshots because they failed validation",
			},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "calls",
				Name:      "active_sessions",
				Help:      "Identities with live coordinators",
			},
		),

		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notifications",
				Name:      "total",
				Help:      "Notifications by kind and delivery result",
			},
			[]string{"kind", "result"}, // result: delivered, failed
		),
	}
}

// Handler exposes the registry for scraping
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordTransition counts one status write
func (m *Metrics) RecordTransition(status, result string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(status, result).Inc()
}

// RecordExpiry counts one elapsed ring window
func (m *Metrics) RecordExpiry(side string) {
	if m == nil {
		return
	}
	m.ExpiriesTotal.WithLabelValues(side).Inc()
}

// RecordSubscriptionError counts one failed snapshot
func (m *Metrics) RecordSubscriptionError(side string) {
	if m == nil {
		return
	}
	m.SubscriptionErrors.WithLabelValues(side).Inc()
}

// RecordInvalidRow counts one dropped row
func (m *Metrics) RecordInvalidRow() {
	if m == nil {
		return
	}
	m.InvalidRowsTotal.Inc()
}

// SetActiveSessions sets the live session gauge
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// RecordNotification counts one notification attempt
func (m *Metrics) RecordNotification(kind, result string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(kind, result).Inc()
}

// EchoMiddleware records request count and latency per route
func (m *Metrics) EchoMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			status := strconv.Itoa(c.Response().Status)
			m.HTTPRequestsTotal.WithLabelValues(c.Request().Method, path, status).Inc()
			m.HTTPRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
