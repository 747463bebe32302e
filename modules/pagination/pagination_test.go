package pagination

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"streamhub/modules/clock"
	"streamhub/modules/hmac"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID int64
	TS int64
}

type itemKey struct {
	TS int64 `json:"ts"`
	ID int64 `json:"id"`
}

func keyOf(it item) itemKey { return itemKey{TS: it.TS, ID: it.ID} }

// before reports whether a sorts ahead of b under (ts DESC, id DESC).
func before(a, b itemKey) bool {
	if a.TS != b.TS {
		return a.TS > b.TS
	}
	return a.ID > b.ID
}

type memStore struct {
	items []item
	calls int
}

func (m *memStore) fetch(_ context.Context, after *itemKey, limit int) ([]item, error) {
	m.calls++
	sorted := slices.Clone(m.items)
	slices.SortFunc(sorted, func(a, b item) int {
		if c := cmp.Compare(b.TS, a.TS); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	var out []item
	for _, it := range sorted {
		if after != nil && !before(*after, keyOf(it)) {
			continue
		}
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) delete(id int64) {
	m.items = slices.DeleteFunc(m.items, func(it item) bool { return it.ID == id })
}

func newCodec(t *testing.T, c clock.Clock) *Codec[itemKey] {
	t.Helper()
	s, err := hmac.NewHMACSigner([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return NewCodec[itemKey](s, time.Hour, c)
}

// 25 items where groups of five share a timestamp.
func seed() *memStore {
	m := &memStore{}
	for i := int64(1); i <= 25; i++ {
		m.items = append(m.items, item{ID: i, TS: 1000 + (i-1)/5})
	}
	return m
}

func TestParseLimit(t *testing.T) {
	cases := []struct {
		raw  string
		want int
		err  error
	}{
		{"", DefaultLimit, nil},
		{"  ", DefaultLimit, nil},
		{"1", 1, nil},
		{"100", 100, nil},
		{"101", MaxLimit, nil},
		{"100000", MaxLimit, nil},
		{"0", 0, ErrInvalidLimit},
		{"-3", 0, ErrInvalidLimit},
		{"ten", 0, ErrInvalidLimit},
		{"1.5", 0, ErrInvalidLimit},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseLimit(tc.raw)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWalkAllPages(t *testing.T) {
	store := seed()
	codec := newCodec(t, clock.Fake(time.Unix(1_700_000_000, 0)))
	ctx := context.Background()

	var sizes []int
	seen := map[int64]bool{}
	var order []itemKey
	cursor := ""
	for {
		page, err := Paginate(ctx, codec, Request{Cursor: cursor, Limit: 10, Scope: "all"}, store.fetch, keyOf)
		require.NoError(t, err)
		sizes = append(sizes, len(page.Items))
		for _, it := range page.Items {
			assert.False(t, seen[it.ID], "item %d returned twice", it.ID)
			seen[it.ID] = true
			order = append(order, keyOf(it))
		}
		if !page.HasMore {
			assert.Empty(t, page.NextCursor)
			break
		}
		require.NotEmpty(t, page.NextCursor)
		cursor = page.NextCursor
	}

	assert.Equal(t, []int{10, 10, 5}, sizes)
	assert.Len(t, seen, 25)
	assert.True(t, slices.IsSortedFunc(order, func(a, b itemKey) int {
		if before(a, b) {
			return -1
		}
		return 1
	}))
}

func TestExactMultipleHasNoTrailingCursor(t *testing.T) {
	store := &memStore{}
	for i := int64(1); i <= 10; i++ {
		store.items = append(store.items, item{ID: i, TS: i})
	}
	codec := newCodec(t, clock.Fake(time.Unix(1_700_000_000, 0)))

	page, err := Paginate(context.Background(), codec, Request{Limit: 10}, store.fetch, keyOf)
	require.NoError(t, err)
	assert.Len(t, page.Items, 10)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.NextCursor)
}

func TestEmptyPageIsNotNull(t *testing.T) {
	codec := newCodec(t, nil)
	page, err := Paginate(context.Background(), codec, Request{Limit: 5}, (&memStore{}).fetch, keyOf)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasMore)
}

func TestCursorSurvivesDeletedRow(t *testing.T) {
	store := seed()
	codec := newCodec(t, clock.Fake(time.Unix(1_700_000_000, 0)))
	ctx := context.Background()

	first, err := Paginate(ctx, codec, Request{Limit: 10, Scope: "all"}, store.fetch, keyOf)
	require.NoError(t, err)
	store.delete(first.Items[len(first.Items)-1].ID)

	second, err := Paginate(ctx, codec, Request{Cursor: first.NextCursor, Limit: 10, Scope: "all"}, store.fetch, keyOf)
	require.NoError(t, err)
	assert.Len(t, second.Items, 10)
	for _, a := range first.Items {
		for _, b := range second.Items {
			assert.NotEqual(t, a.ID, b.ID)
		}
	}
}

func TestInvalidCursors(t *testing.T) {
	store := seed()
	clk := clock.Fake(time.Unix(1_700_000_000, 0))
	codec := newCodec(t, clk)
	ctx := context.Background()

	first, err := Paginate(ctx, codec, Request{Limit: 10, Scope: "all"}, store.fetch, keyOf)
	require.NoError(t, err)
	good := first.NextCursor

	payload, sig, _ := strings.Cut(good, ".")
	otherSigner, err := hmac.NewHMACSigner([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)
	foreign, err := NewCodec[itemKey](otherSigner, time.Hour, clk).Encode("all", itemKey{TS: 1, ID: 1})
	require.NoError(t, err)
	notJSON, err := otherSigner.Sign([]byte("not json"))
	require.NoError(t, err)

	cases := map[string]Request{
		"garbage":       {Cursor: "garbage", Limit: 10, Scope: "all"},
		"truncated":     {Cursor: good[:len(good)-2], Limit: 10, Scope: "all"},
		"resigned":      {Cursor: payload + "." + strings.Repeat("A", len(sig)), Limit: 10, Scope: "all"},
		"foreign key":   {Cursor: foreign, Limit: 10, Scope: "all"},
		"other filter":  {Cursor: good, Limit: 10, Scope: "mine:bob"},
		"unsigned json": {Cursor: notJSON, Limit: 10, Scope: "all"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			calls := store.calls
			_, err := Paginate(ctx, codec, req, store.fetch, keyOf)
			assert.ErrorIs(t, err, ErrInvalidCursor)
			assert.Equal(t, calls, store.calls, "store must not be queried")
		})
	}

	t.Run("expired", func(t *testing.T) {
		clk.Advance(time.Hour)
		_, err := Paginate(ctx, codec, Request{Cursor: good, Limit: 10, Scope: "all"}, store.fetch, keyOf)
		assert.ErrorIs(t, err, ErrInvalidCursor)
	})
}

func TestLimitValidation(t *testing.T) {
	store := seed()
	codec := newCodec(t, nil)
	ctx := context.Background()

	_, err := Paginate(ctx, codec, Request{Limit: 0}, store.fetch, keyOf)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	page, err := Paginate(ctx, codec, Request{Limit: 1000}, store.fetch, keyOf)
	require.NoError(t, err)
	assert.Len(t, page.Items, 25)
}

func TestFetchErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	codec := newCodec(t, nil)
	_, err := Paginate(context.Background(), codec, Request{Limit: 3},
		func(context.Context, *itemKey, int) ([]item, error) { return nil, boom }, keyOf)
	assert.ErrorIs(t, err, boom)
}
