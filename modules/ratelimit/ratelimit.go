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

// Package ratelimit decides whether a caller may make another request.
// Two limiters exist: a sliding window over a shared CounterStore (Redis in
// production) and an in-process token bucket for single-node deployments.
package ratelimit

import (
	"context"
	"time"
)

type (
	// LimiterFactory builds a limiter allowing limit requests per window.
	LimiterFactory func(limit int64, window time.Duration) RateLimiter

	RateLimiter interface {
		Allow(ctx context.Context, key Key) (Result, error)
	}

	// Key identifies a caller, e.g. a remote IP or a token subject.
	Key string

	Result struct {
		Allowed       bool
		Remaining     int64
		RetryAfter    time.Duration // zero when allowed
		Limit         int64
		Window        time.Duration
		WindowResetIn time.Duration
	}
)
