// Package prom exports lingodb operational metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	mc := prom.NewCollector(prom.WithRegisterer(reg))
//	db, err := lingodb.Open(ctx, "en.lingo", lingodb.WithMetricsCollector(mc))
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hupe1980/lingodb"
)

// Option configures a Collector.
type Option func(*options)

type options struct {
	namespace  string
	registerer prometheus.Registerer
	buckets    []float64
}

// WithNamespace sets the metric name prefix. Defaults to "lingodb".
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithRegisterer sets where metrics are registered. Defaults to
// prometheus.DefaultRegisterer.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithBuckets sets the latency histogram buckets in seconds.
func WithBuckets(b []float64) Option {
	return func(o *options) { o.buckets = b }
}

// Collector implements lingodb.MetricsCollector with Prometheus metrics.
type Collector struct {
	ops          *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	results      prometheus.Histogram
	instructions prometheus.Histogram
	buildNodes   prometheus.Gauge
	cacheHits    prometheus.Counter
}

var _ lingodb.MetricsCollector = (*Collector)(nil)

// NewCollector creates and registers the metrics. It panics if they are
// already registered with the same registerer.
func NewCollector(optFns ...Option) *Collector {
	o := options{
		namespace:  "lingodb",
		registerer: prometheus.DefaultRegisterer,
		// Queries run in microseconds, fetches can take seconds.
		buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}
	for _, fn := range optFns {
		fn(&o)
	}
	f := promauto.With(o.registerer)

	return &Collector{
		ops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "operations_total",
			Help:      "Total number of operations, by operation and status.",
		}, []string{"op", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations in seconds.",
			Buckets:   o.buckets,
		}, []string{"op"}),
		results: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "query_results",
			Help:      "Number of node ids returned per successful query.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		instructions: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "query_instructions",
			Help:      "Number of instructions dispatched per query.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		buildNodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: o.namespace,
			Name:      "build_nodes",
			Help:      "Node count of the last successful build.",
		}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "fetch_cache_hits_total",
			Help:      "Release fetches served from a verified local copy.",
		}),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) record(op string, d time.Duration, err error) {
	c.ops.WithLabelValues(op, status(err)).Inc()
	c.duration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordOpen implements lingodb.MetricsCollector.
func (c *Collector) RecordOpen(d time.Duration, err error) {
	c.record("open", d, err)
}

// RecordBuild implements lingodb.MetricsCollector.
func (c *Collector) RecordBuild(nodes int, d time.Duration, err error) {
	c.record("build", d, err)
	if err == nil {
		c.buildNodes.Set(float64(nodes))
	}
}

// RecordQuery implements lingodb.MetricsCollector.
func (c *Collector) RecordQuery(instructions, results int, d time.Duration, err error) {
	c.record("query", d, err)
	c.instructions.Observe(float64(instructions))
	if err == nil {
		c.results.Observe(float64(results))
	}
}

// RecordFetch implements lingodb.MetricsCollector.
func (c *Collector) RecordFetch(cached bool, d time.Duration, err error) {
	c.record("fetch", d, err)
	if err == nil && cached {
		c.cacheHits.Inc()
	}
}
