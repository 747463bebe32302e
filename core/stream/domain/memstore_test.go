package domain

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"streamhub/modules/clock"
)

// memStore is an in-memory StreamReadStore and StreamWriteStore. A
// transaction holds the store lock and restores a snapshot on error.
type memStore struct {
	mu     sync.Mutex
	rows   map[int64]Stream
	nextID int64
	clock  *clock.FakeClock
}

func newMemStore(c *clock.FakeClock) *memStore {
	return &memStore{rows: map[int64]Stream{}, clock: c}
}

func (m *memStore) GetStreamByID(_ context.Context, id int64) (*Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, ErrStreamNotFound
	}
	return &s, nil
}

func (m *memStore) ListStreams(_ context.Context, f ListFilter, after *StreamKey, limit int) ([]Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := slices.Collect(maps.Values(m.rows))
	slices.SortFunc(all, func(a, b Stream) int {
		if a.Key().Less(b.Key()) {
			return -1
		}
		return 1
	})
	var out []Stream
	for _, s := range all {
		if !f.Matches(s) {
			continue
		}
		if after != nil && !after.Less(s.Key()) {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx StreamWriteTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot, next := maps.Clone(m.rows), m.nextID
	if err := fn(ctx, memTx{m}); err != nil {
		m.rows, m.nextID = snapshot, next
		return err
	}
	return nil
}

func (m *memStore) WithTimeoutTx(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, tx StreamWriteTx) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return m.WithTx(ctx, fn)
}

// insert adds a row directly, bypassing the domain.
func (m *memStore) insert(s Stream) Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	if s.Version == 0 {
		s.Version = 1
	}
	m.rows[s.ID] = s
	return s
}

type memTx struct{ m *memStore }

func (t memTx) CreateStream(_ context.Context, owner, title, description string) (*Stream, error) {
	t.m.nextID++
	now := t.m.clock.Now()
	s := Stream{
		ID:          t.m.nextID,
		Title:       title,
		Description: description,
		Status:      StatusCreated,
		Owner:       owner,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	t.m.rows[s.ID] = s
	return &s, nil
}

func (t memTx) GetStreamForUpdate(_ context.Context, id int64) (*Stream, error) {
	s, ok := t.m.rows[id]
	if !ok {
		return nil, ErrStreamNotFound
	}
	return &s, nil
}

func (t memTx) bump(id, version int64, apply func(*Stream)) (*Stream, error) {
	s, ok := t.m.rows[id]
	if !ok {
		return nil, ErrStreamNotFound
	}
	if s.Version != version {
		return nil, ErrPrecondition
	}
	apply(&s)
	s.Version++
	s.UpdatedAt = t.m.clock.Now()
	t.m.rows[id] = s
	return &s, nil
}

func (t memTx) UpdateStream(_ context.Context, p *UpdateStreamParams) (*Stream, error) {
	return t.bump(p.ID, p.Version, func(s *Stream) {
		s.Title, s.Description = p.Title, p.Description
	})
}

func (t memTx) SetStatus(_ context.Context, id int64, status Status, version int64) (*Stream, error) {
	return t.bump(id, version, func(s *Stream) { s.Status = status })
}

func (t memTx) DeleteStream(_ context.Context, id int64, version int64) error {
	s, ok := t.m.rows[id]
	if !ok {
		return ErrStreamNotFound
	}
	if s.Version != version {
		return ErrPrecondition
	}
	delete(t.m.rows, id)
	return nil
}
