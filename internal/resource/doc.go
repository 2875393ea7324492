// Package resource governs query admission and background IO.
//
//	┌──────────────────────────────────────────────┐
//	│                 Controller                   │
//	├────────────────┬─────────────────┬───────────┤
//	│ Query slots    │ Query rate      │ IO rate   │
//	│ (semaphore)    │ (token bucket)  │ (bytes/s) │
//	└────────────────┴─────────────────┴───────────┘
//
// AcquireQuery waits for a rate token and then a concurrency slot; callers
// must pair it with ReleaseQuery:
//
//	if err := rc.AcquireQuery(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseQuery()
//
// IO limiting throttles release downloads through NewRateLimitedReader.
//
// All methods are safe for concurrent use, and a nil *Controller admits
// everything.
package resource
