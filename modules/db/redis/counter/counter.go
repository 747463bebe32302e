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

// Package counter stores rate limit counters in Redis.
package counter

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"streamhub/modules/ratelimit"

	"github.com/redis/rueidis"
)

var (
	_ ratelimit.CounterStore = (*RedisCounter)(nil)

	// KEYS[1] counter key, ARGV[1] ttl in ms applied when the key is created
	//go:embed incr_expr.lua
	incrScriptSrc string

	incrScript = rueidis.NewLuaScript(incrScriptSrc)
)

type RedisCounter struct {
	client rueidis.Client
	prefix string
}

// New wraps client as a CounterStore. A non-empty prefix is joined to every
// key with a colon.
func New(client rueidis.Client, prefix string) *RedisCounter {
	return &RedisCounter{client: client, prefix: normalizePrefix(prefix)}
}

func normalizePrefix(p string) string {
	if p != "" && p[len(p)-1] != ':' {
		return p + ":"
	}
	return p
}

func (r *RedisCounter) Get(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Do(ctx, r.client.B().Get().Key(r.prefix+key).Build()).AsInt64()
	if rueidis.IsRedisNil(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis counter get: %w", err)
	}
	return n, nil
}

// Incr runs INCR and PEXPIRE in one script so a crash between the two can
// never leave a counter without a TTL.
func (r *RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ms := strconv.FormatInt(max(ttl.Milliseconds(), 1), 10)
	n, err := incrScript.Exec(ctx, r.client, []string{r.prefix + key}, []string{ms}).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("redis counter incr: %w", err)
	}
	return n, nil
}
