package lingodb

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; package
// metrics/prom provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordOpen is called after a knowledge base is opened.
	RecordOpen(duration time.Duration, err error)

	// RecordBuild is called after Build writes a knowledge base.
	RecordBuild(nodes int, duration time.Duration, err error)

	// RecordQuery is called after each query. instructions is the number of
	// instructions dispatched, results the size of the result set.
	RecordQuery(instructions, results int, duration time.Duration, err error)

	// RecordFetch is called after a release fetch. cached is true when a
	// verified local copy was reused.
	RecordFetch(cached bool, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOpen(time.Duration, error)            {}
func (NoopMetricsCollector) RecordBuild(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordQuery(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordFetch(bool, time.Duration, error)     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	OpenCount         atomic.Int64
	OpenErrors        atomic.Int64
	BuildCount        atomic.Int64
	BuildErrors       atomic.Int64
	BuildNodes        atomic.Int64
	QueryCount        atomic.Int64
	QueryErrors       atomic.Int64
	QueryInstructions atomic.Int64
	QueryResults      atomic.Int64
	QueryTotalNanos   atomic.Int64
	FetchCount        atomic.Int64
	FetchErrors       atomic.Int64
	FetchCacheHits    atomic.Int64
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(_ time.Duration, err error) {
	b.OpenCount.Add(1)
	if err != nil {
		b.OpenErrors.Add(1)
	}
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(nodes int, _ time.Duration, err error) {
	b.BuildCount.Add(1)
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.BuildNodes.Add(int64(nodes))
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(instructions, results int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryInstructions.Add(int64(instructions))
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
		return
	}
	b.QueryResults.Add(int64(results))
}

// RecordFetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFetch(cached bool, _ time.Duration, err error) {
	b.FetchCount.Add(1)
	switch {
	case err != nil:
		b.FetchErrors.Add(1)
	case cached:
		b.FetchCacheHits.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		OpenCount:         b.OpenCount.Load(),
		OpenErrors:        b.OpenErrors.Load(),
		BuildCount:        b.BuildCount.Load(),
		BuildErrors:       b.BuildErrors.Load(),
		QueryCount:        b.QueryCount.Load(),
		QueryErrors:       b.QueryErrors.Load(),
		QueryInstructions: b.QueryInstructions.Load(),
		QueryResults:      b.QueryResults.Load(),
		FetchCount:        b.FetchCount.Load(),
		FetchErrors:       b.FetchErrors.Load(),
		FetchCacheHits:    b.FetchCacheHits.Load(),
	}
	if s.QueryCount > 0 {
		s.QueryAvgNanos = b.QueryTotalNanos.Load() / s.QueryCount
	}
	return s
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	OpenCount         int64
	OpenErrors        int64
	BuildCount        int64
	BuildErrors       int64
	QueryCount        int64
	QueryErrors       int64
	QueryInstructions int64
	QueryResults      int64
	QueryAvgNanos     int64
	FetchCount        int64
	FetchErrors       int64
	FetchCacheHits    int64
}
