// Package metrics exposes HTTP and study log counters to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/studylog/core/internal/domain/entities"
)

// Recorder owns a private registry so tests can build several side by side
type Recorder struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	entriesTotal *prometheus.CounterVec
	minutesTotal *prometheus.CounterVec
	databases    prometheus.Gauge
	corruptReads *prometheus.CounterVec
}

// New creates a recorder with Go runtime and process collectors registered
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		entriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studylog_entries_submitted_total",
				Help: "Entries appended, by database",
			},
			[]string{"database"},
		),
		minutesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studylog_minutes_recorded_total",
				Help: "Minutes recorded, by database and category",
			},
			[]string{"database", "category"},
		),
		databases: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "studylog_databases",
			Help: "Database files currently in the data directory",
		}),
		corruptReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studylog_corrupt_reads_total",
				Help: "Reads that found an unparseable database file",
			},
			[]string{"database"},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.requestsTotal,
		r.requestDuration,
		r.entriesTotal,
		r.minutesTotal,
		r.databases,
		r.corruptReads,
	)
	return r
}

// EntrySubmitted counts an appended entry and its minutes
func (r *Recorder) EntrySubmitted(database string, entry entities.Entry) {
	r.entriesTotal.WithLabelValues(database).Inc()
	for _, c := range entities.Categories {
		if m := entry.Get(c); m > 0 {
			r.minutesTotal.WithLabelValues(database, string(c)).Add(float64(m))
		}
	}
}

// CollectionCount sets the number of database files
func (r *Recorder) CollectionCount(n int) {
	r.databases.Set(float64(n))
}

// CorruptRead counts a read of an unparseable database
func (r *Recorder) CorruptRead(database string) {
	r.corruptReads.WithLabelValues(database).Inc()
}

// Middleware records request counts and latency per route
func (r *Recorder) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			// the error handler has not run yet, so derive the status it will send
			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			r.requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				strconv.Itoa(status),
			).Inc()
			r.requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// Handler serves the exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
