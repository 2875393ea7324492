package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds admission limits. Zero values disable the corresponding limit.
type Config struct {
	// MaxConcurrentQueries bounds the number of queries executing at once.
	MaxConcurrentQueries int64

	// QueriesPerSecond is the sustained query admission rate.
	QueriesPerSecond float64

	// QueryBurst is the token bucket size for QueriesPerSecond. Defaults to 1.
	QueryBurst int

	// IOLimitBytesPerSec throttles background downloads.
	IOLimitBytesPerSec int64
}

// Controller enforces Config.
type Controller struct {
	cfg Config

	querySem     *semaphore.Weighted // nil if unlimited
	queryLimiter *rate.Limiter       // nil if unlimited
	ioLimiter    *rate.Limiter       // nil if unlimited

	inFlight atomic.Int64
	rejected atomic.Int64
}

// NewController creates a controller for cfg.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}
	if cfg.MaxConcurrentQueries > 0 {
		c.querySem = semaphore.NewWeighted(cfg.MaxConcurrentQueries)
	}
	if cfg.QueriesPerSecond > 0 {
		burst := cfg.QueryBurst
		if burst <= 0 {
			burst = 1
		}
		c.queryLimiter = rate.NewLimiter(rate.Limit(cfg.QueriesPerSecond), burst)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// AcquireQuery blocks until the query may run or ctx is done.
func (c *Controller) AcquireQuery(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.queryLimiter != nil {
		if err := c.queryLimiter.Wait(ctx); err != nil {
			c.rejected.Add(1)
			return err
		}
	}
	if c.querySem != nil {
		if err := c.querySem.Acquire(ctx, 1); err != nil {
			c.rejected.Add(1)
			return err
		}
	}
	c.inFlight.Add(1)
	return nil
}

// TryAcquireQuery admits a query only if no waiting is required. A query
// refused for lack of a slot does not consume a rate token.
func (c *Controller) TryAcquireQuery() bool {
	if c == nil {
		return true
	}
	if c.querySem != nil && !c.querySem.TryAcquire(1) {
		c.rejected.Add(1)
		return false
	}
	if c.queryLimiter != nil && !c.queryLimiter.Allow() {
		if c.querySem != nil {
			c.querySem.Release(1)
		}
		c.rejected.Add(1)
		return false
	}
	c.inFlight.Add(1)
	return true
}

// ReleaseQuery returns the slot taken by a successful Acquire.
func (c *Controller) ReleaseQuery() {
	if c == nil {
		return
	}
	c.inFlight.Add(-1)
	if c.querySem != nil {
		c.querySem.Release(1)
	}
}

// InFlight returns the number of admitted, unreleased queries.
func (c *Controller) InFlight() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// Rejected returns the number of queries refused or abandoned while waiting.
func (c *Controller) Rejected() int64 {
	if c == nil {
		return 0
	}
	return c.rejected.Load()
}

// AcquireIO waits until n bytes of IO are allowed.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for n > 0 {
		chunk := min(n, burst)
		if err := c.ioLimiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
