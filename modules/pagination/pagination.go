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

// Package pagination implements keyset pagination with opaque, signed
// continuation cursors.
//
// A cursor carries the ordering key of the last item a client has seen, the
// fingerprint of the filter it was produced under and an expiry. It encodes a
// position rather than a row, so it stays usable when that row is deleted.
package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"streamhub/modules/clock"
)

const (
	DefaultLimit     = 10
	MaxLimit         = 100
	DefaultCursorTTL = 24 * time.Hour

	cursorVersion = 1
)

var (
	ErrInvalidLimit  = errors.New("limit must be a positive integer")
	ErrInvalidCursor = errors.New("invalid cursor")
)

// ParseLimit reads a page size from a query parameter. An empty value yields
// DefaultLimit and anything above MaxLimit is clamped.
func ParseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, ErrInvalidLimit
	}
	return min(n, MaxLimit), nil
}

type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
}

// Signer is satisfied by modules/hmac.HMACSigner.
type Signer interface {
	Sign(payload []byte) (string, error)
	Verify(token string) ([]byte, error)
}

type envelope[K any] struct {
	V     int    `json:"v"`
	Scope string `json:"scope"`
	Key   K      `json:"key"`
	Exp   int64  `json:"exp"`
}

// Codec turns ordering keys of type K into cursors and back.
type Codec[K any] struct {
	signer Signer
	ttl    time.Duration
	clock  clock.Clock
}

// NewCodec returns a codec signing with s. A non-positive ttl selects
// DefaultCursorTTL and a nil clock the wall clock.
func NewCodec[K any](s Signer, ttl time.Duration, c clock.Clock) *Codec[K] {
	if ttl <= 0 {
		ttl = DefaultCursorTTL
	}
	if c == nil {
		c = clock.RealClockProvider()
	}
	return &Codec[K]{signer: s, ttl: ttl, clock: c}
}

func (c *Codec[K]) Encode(scope string, key K) (string, error) {
	b, err := json.Marshal(envelope[K]{
		V:     cursorVersion,
		Scope: scope,
		Key:   key,
		Exp:   c.clock.Now().Add(c.ttl).Unix(),
	})
	if err != nil {
		return "", err
	}
	return c.signer.Sign(b)
}

// Decode returns ErrInvalidCursor for every failure: bad signature or
// encoding, unknown version, a scope other than the caller's, or expiry.
func (c *Codec[K]) Decode(scope, raw string) (K, error) {
	var zero K
	payload, err := c.signer.Verify(raw)
	if err != nil {
		return zero, ErrInvalidCursor
	}
	var env envelope[K]
	if err := json.Unmarshal(payload, &env); err != nil {
		return zero, ErrInvalidCursor
	}
	if env.V != cursorVersion || env.Scope != scope {
		return zero, ErrInvalidCursor
	}
	if c.clock.Now().Unix() >= env.Exp {
		return zero, ErrInvalidCursor
	}
	return env.Key, nil
}

type Request struct {
	Cursor string
	Limit  int
	// Scope fingerprints the filter; a cursor only continues the listing it
	// was produced by.
	Scope string
}

// Fetcher returns up to limit items ordered strictly after the given key, or
// from the start when after is nil.
type Fetcher[T, K any] func(ctx context.Context, after *K, limit int) ([]T, error)

// Paginate fetches one page, reading a single extra row to learn whether
// another page follows.
func Paginate[T, K any](
	ctx context.Context,
	codec *Codec[K],
	req Request,
	fetch Fetcher[T, K],
	keyOf func(T) K,
) (Page[T], error) {
	if req.Limit <= 0 {
		return Page[T]{}, ErrInvalidLimit
	}
	limit := min(req.Limit, MaxLimit)

	var after *K
	if req.Cursor != "" {
		k, err := codec.Decode(req.Scope, req.Cursor)
		if err != nil {
			return Page[T]{}, err
		}
		after = &k
	}

	items, err := fetch(ctx, after, limit+1)
	if err != nil {
		return Page[T]{}, err
	}

	page := Page[T]{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.HasMore = true
		next, err := codec.Encode(req.Scope, keyOf(page.Items[limit-1]))
		if err != nil {
			return Page[T]{}, err
		}
		page.NextCursor = next
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page, nil
}
