package ratelimit

import (
	"context"
	"time"
)

// CounterStore holds the per-window counters of the sliding window limiter.
// Implementations must make Incr atomic across processes sharing the store.
type CounterStore interface {
	// Incr adds one to key and returns the new value. A key created by this
	// call lives for at least ttl.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get returns the value at key, 0 when absent.
	Get(ctx context.Context, key string) (int64, error)
}
