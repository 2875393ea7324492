package lingodb

import (
	"log/slog"

	"github.com/hupe1980/lingodb/release"
	"github.com/hupe1980/lingodb/slang"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	limits           slang.Limits
	layerRadius      float64
	maxConcurrent    int64
	queryRate        float64
	queryBurst       int
	failFast         bool
	verifyChecksums  bool
	cacheDir         string
	releaseOptions   []release.Option
}

// Option configures Open, OpenRelease, Build and Publish.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &lingodb.BasicMetricsCollector{}
//	db, _ := lingodb.Open(ctx, "en.lingo", lingodb.WithMetricsCollector(metrics))
//	// ... run queries ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := lingodb.NewJSONLogger(slog.LevelInfo)
//	db, _ := lingodb.Open(ctx, "en.lingo", lingodb.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithLimits sets the per-query caps. Zero fields keep their defaults.
func WithLimits(l slang.Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}

// WithLayerRadius sets the search radius of the spatial fallback used by
// LayerUp and LayerDown. Defaults to slang.DefaultLayerRadius.
func WithLayerRadius(r float64) Option {
	return func(o *options) {
		o.layerRadius = r
	}
}

// WithMaxConcurrentQueries bounds the number of queries executing at once.
// Callers beyond the bound wait for a slot. n <= 0 removes the bound.
func WithMaxConcurrentQueries(n int) Option {
	return func(o *options) {
		o.maxConcurrent = int64(max(n, 0))
	}
}

// WithQueryRate limits query admission to qps with the given burst.
// qps <= 0 removes the limit.
func WithQueryRate(qps float64, burst int) Option {
	return func(o *options) {
		o.queryRate = qps
		o.queryBurst = burst
	}
}

// WithFailFast makes query admission non-blocking: a query that would wait
// for a concurrency slot or a rate token fails immediately with
// ErrResourceExhausted instead.
func WithFailFast(enabled bool) Option {
	return func(o *options) {
		o.failFast = enabled
	}
}

// WithVerifyChecksums toggles section checksum verification at open.
// Enabled by default.
func WithVerifyChecksums(verify bool) Option {
	return func(o *options) {
		o.verifyChecksums = verify
	}
}

// WithCacheDir sets the directory OpenRelease installs releases in.
// Defaults to a lingodb directory under os.UserCacheDir.
func WithCacheDir(dir string) Option {
	return func(o *options) {
		o.cacheDir = dir
	}
}

// WithReleaseOptions passes options through to release.Fetch and
// release.Publish, e.g. a custom catalog or compression.
func WithReleaseOptions(optFns ...release.Option) Option {
	return func(o *options) {
		o.releaseOptions = append(o.releaseOptions, optFns...)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		layerRadius:      slang.DefaultLayerRadius,
		verifyChecksums:  true,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
