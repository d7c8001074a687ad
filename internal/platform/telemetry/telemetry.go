// Package telemetry exposes Prometheus metrics for the HTTP layer, the series
// builder and the database pool.
package telemetry

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hospital/dashboard/internal/platform/db"
)

// Config holds metric settings.
type Config struct {
	Namespace string
	// RuntimeMetrics adds the Go runtime and process collectors.
	RuntimeMetrics bool
}

func (c *Config) applyDefaults() {
	if c.Namespace == "" {
		c.Namespace = "dashboard"
	}
}

var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics holds the dashboard collectors on a private registry.
type Metrics struct {
	namespace string
	registry  *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	active   prometheus.Gauge

	builds    *prometheus.HistogramVec
	buildRows *prometheus.CounterVec
}

// New creates and registers the dashboard metrics.
func New(cfg Config) *Metrics {
	cfg.applyDefaults()
	reg := prometheus.NewRegistry()

	m := &Metrics{
		namespace: cfg.Namespace,
		registry:  reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   durationBuckets,
		}, []string{"method", "route"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "active_requests",
			Help:      "Number of in-flight HTTP requests.",
		}),
		builds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "series",
			Name:      "build_duration_seconds",
			Help:      "Time to read and aggregate one series.",
			Buckets:   durationBuckets,
		}, []string{"kind", "mode", "result"}),
		buildRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "series",
			Name:      "fact_rows_total",
			Help:      "Daily fact rows read from the store.",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.requests, m.duration, m.active, m.builds, m.buildRows)
	if cfg.RuntimeMetrics {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request counts and latency per route pattern.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.active.Inc()
			start := time.Now()

			err := next(c)

			m.active.Dec()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			m.requests.WithLabelValues(method, route, strconv.Itoa(statusOf(c, err))).Inc()
			return err
		}
	}
}

func statusOf(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

// ObserveBuild records one series build.
func (m *Metrics) ObserveBuild(kind, mode string, rows int, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.builds.WithLabelValues(kind, mode, result).Observe(elapsed.Seconds())
	m.buildRows.WithLabelValues(kind).Add(float64(rows))
}

// WatchDatabase exports connection pool statistics on every scrape.
func (m *Metrics) WatchDatabase(d db.Database) {
	m.registry.MustRegister(newPoolCollector(m.namespace, d))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	}))
}

// -- Pool collector --

type poolCollector struct {
	database db.Database
	conns    *prometheus.Desc
	maxConns *prometheus.Desc
	acquires *prometheus.Desc
}

func newPoolCollector(namespace string, d db.Database) *poolCollector {
	return &poolCollector{
		database: d,
		conns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db", "connections"),
			"Open database connections by state.",
			[]string{"driver", "state"}, nil,
		),
		maxConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db", "max_connections"),
			"Configured connection limit.",
			[]string{"driver"}, nil,
		),
		acquires: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db", "acquires_total"),
			"Connections acquired from the pool, or waits for one on database/sql drivers.",
			[]string{"driver"}, nil,
		),
	}
}

func (p *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.conns
	ch <- p.maxConns
	ch <- p.acquires
}

func (p *poolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := p.database.Stats()
	if stats == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(p.conns, prometheus.GaugeValue, float64(stats.IdleConns), stats.Driver, "idle")
	ch <- prometheus.MustNewConstMetric(p.conns, prometheus.GaugeValue, float64(stats.AcquiredConns), stats.Driver, "acquired")
	ch <- prometheus.MustNewConstMetric(p.maxConns, prometheus.GaugeValue, float64(stats.MaxConns), stats.Driver)
	ch <- prometheus.MustNewConstMetric(p.acquires, prometheus.CounterValue, float64(stats.AcquireCount), stats.Driver)
}
