package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"streamhub/modules/clock"

	"golang.org/x/time/rate"
)

var _ RateLimiter = (*TokenBucket)(nil)

// TokenBucket keeps one golang.org/x/time/rate limiter per key in process
// memory. A bucket refills at limit tokens per window and holds at most
// limit tokens.
type TokenBucket struct {
	clock  clock.Clock
	limit  int64
	window time.Duration
	every  rate.Limit

	mu      sync.Mutex
	buckets map[Key]*bucket
	calls   int
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// sweep idle buckets every this many calls
const sweepEvery = 1024

func TokenBucketFactory(clk clock.Clock) LimiterFactory {
	if clk == nil {
		clk = clock.RealClockProvider()
	}
	return func(limit int64, window time.Duration) RateLimiter {
		return NewTokenBucket(clk, limit, window)
	}
}

func NewTokenBucket(clk clock.Clock, limit int64, window time.Duration) *TokenBucket {
	return &TokenBucket{
		clock:   clk,
		limit:   limit,
		window:  window,
		every:   rate.Every(window / time.Duration(max(limit, 1))),
		buckets: make(map[Key]*bucket),
	}
}

func (t *TokenBucket) Allow(_ context.Context, key Key) (Result, error) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls++
	if t.calls%sweepEvery == 0 {
		t.sweep(now)
	}

	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(t.every, int(t.limit))}
		t.buckets[key] = b
	}
	b.lastSeen = now

	res := Result{Limit: t.limit, Window: t.window}
	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		res.RetryAfter = t.window
		res.WindowResetIn = t.window
		return res, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		res.RetryAfter = delay
		res.WindowResetIn = delay
		return res, nil
	}

	res.Allowed = true
	tokens := b.lim.TokensAt(now)
	res.Remaining = int64(math.Max(math.Floor(tokens), 0))
	// time until the bucket is full again
	missing := float64(t.limit) - tokens
	res.WindowResetIn = time.Duration(missing / float64(t.every) * float64(time.Second))
	return res, nil
}

// a bucket idle for a whole window is full, same as a new one
func (t *TokenBucket) sweep(now time.Time) {
	for k, b := range t.buckets {
		if now.Sub(b.lastSeen) >= t.window {
			delete(t.buckets, k)
		}
	}
}

// Len reports how many keys currently hold a bucket.
func (t *TokenBucket) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets)
}
