// Copyright 2025 Nguyen Nhat Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ratelimit

import (
	"context"
	"math/bits"
	"strconv"
	"time"

	"streamhub/modules/clock"
)

var _ RateLimiter = (*SlidingWindow)(nil)

// SlidingWindow approximates a rolling window from two fixed windows: the
// previous window's count is weighted by how much of it still overlaps the
// rolling window ending now.
type SlidingWindow struct {
	clock   clock.Clock
	counter CounterStore
	prefix  string
	limit   uint64
	window  time.Duration
}

// SlidingWindowFactory shares one counter store between all limiters it
// builds; prefix keeps their keys apart from other users of the store.
func SlidingWindowFactory(clk clock.Clock, counter CounterStore, prefix string) LimiterFactory {
	if clk == nil {
		clk = clock.RealClockProvider()
	}
	return func(limit int64, window time.Duration) RateLimiter {
		return &SlidingWindow{
			clock:   clk,
			counter: counter,
			prefix:  prefix + strconv.FormatInt(limit, 10) + "/" + window.String() + ":",
			limit:   uint64(max(limit, 0)),
			window:  window,
		}
	}
}

func (s *SlidingWindow) Allow(ctx context.Context, key Key) (Result, error) {
	windowNs := s.window.Nanoseconds()
	nowNs := s.clock.Now().UnixNano()
	idx := nowNs / windowNs

	cur, err := s.counter.Incr(ctx, s.key(key, idx), 2*s.window)
	if err != nil {
		return Result{}, err
	}
	prev, err := s.counter.Get(ctx, s.key(key, idx-1))
	if err != nil {
		return Result{}, err
	}

	elapsed := min(max(nowNs-idx*windowNs, 0), windowNs)
	resetIn := s.window - time.Duration(elapsed)

	used, allowed := weightedUsage(uint64(max(cur, 0)), uint64(max(prev, 0)), uint64(elapsed), uint64(windowNs), s.limit)

	res := Result{
		Allowed:       allowed,
		Limit:         int64(s.limit),
		Window:        s.window,
		WindowResetIn: resetIn,
	}
	if used < s.limit {
		res.Remaining = int64(s.limit - used)
	}
	if !allowed {
		res.RetryAfter = resetIn
	}
	return res, nil
}

// weightedUsage computes cur + prev*(window-elapsed)/window in 128-bit
// fixed point so consecutive calls never round to the same remainder. It
// returns the usage rounded up to whole requests and whether it stays
// within limit.
func weightedUsage(cur, prev, elapsed, window, limit uint64) (used uint64, allowed bool) {
	curHi, curLo := bits.Mul64(cur, window)
	prevHi, prevLo := bits.Mul64(prev, window-elapsed)
	lo, carry := bits.Add64(curLo, prevLo, 0)
	hi, _ := bits.Add64(curHi, prevHi, carry)

	limHi, limLo := bits.Mul64(limit, window)
	allowed = hi < limHi || (hi == limHi && lo <= limLo)

	if hi >= window {
		return ^uint64(0), allowed
	}
	q, r := bits.Div64(hi, lo, window)
	if r != 0 && q != ^uint64(0) {
		q++
	}
	return q, allowed
}

func (s *SlidingWindow) key(k Key, idx int64) string {
	return s.prefix + string(k) + ":" + strconv.FormatInt(idx, 10)
}
