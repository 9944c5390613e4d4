package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-insights-pipeline/internal/pipeline"
)

const namespace = "insights_pipeline"

// Collector exposes pipeline telemetry on its own registry
type Collector struct {
	registry      *prometheus.Registry
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	stageDuration *prometheus.HistogramVec
	rowsDropped   *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
}

// New creates a Collector and registers its metrics
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of whole pipeline runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of pipeline stages.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage", "status"}),
		rowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows removed by the cleaner, by reason.",
		}, []string{"reason"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}
	c.registry.MustRegister(c.runs, c.runDuration, c.stageDuration, c.rowsDropped, c.httpRequests)
	return c
}

var _ pipeline.Observer = (*Collector)(nil)

func (c *Collector) StageFinished(stage pipeline.Stage, status string, d time.Duration) {
	c.stageDuration.WithLabelValues(string(stage), status).Observe(d.Seconds())
}

func (c *Collector) RowsDropped(reason string, n int) {
	c.rowsDropped.WithLabelValues(reason).Add(float64(n))
}

func (c *Collector) RunFinished(status string, d time.Duration) {
	c.runs.WithLabelValues(status).Inc()
	c.runDuration.Observe(d.Seconds())
}

// Middleware counts HTTP requests
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(c.httpRequests, next)
}

// Handler serves the registry in the prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
