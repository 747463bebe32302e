// Package memory is a process-local stream store used by handler tests and
// by `serve` when no database is configured for a quick demo.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"streamhub/core/stream/domain"
	"streamhub/modules/clock"
)

var (
	_ domain.StreamReadStore  = (*Store)(nil)
	_ domain.StreamWriteStore = (*Store)(nil)
)

// Store serialises transactions on a single lock and restores a snapshot
// when the transaction function fails.
type Store struct {
	mu     sync.Mutex
	rows   map[int64]domain.Stream
	nextID int64
	clock  clock.Clock
}

func New(c clock.Clock) *Store {
	if c == nil {
		c = clock.RealClockProvider()
	}
	return &Store{rows: map[int64]domain.Stream{}, clock: c}
}

func (m *Store) GetStreamByID(_ context.Context, id int64) (*domain.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrStreamNotFound
	}
	return &s, nil
}

func (m *Store) ListStreams(_ context.Context, f domain.ListFilter, after *domain.StreamKey, limit int) ([]domain.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := slices.Collect(maps.Values(m.rows))
	slices.SortFunc(all, func(a, b domain.Stream) int {
		if a.Key().Less(b.Key()) {
			return -1
		}
		return 1
	})
	out := make([]domain.Stream, 0, limit)
	for _, s := range all {
		if !f.Matches(s) || (after != nil && !after.Less(s.Key())) {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx domain.StreamWriteTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot, next := maps.Clone(m.rows), m.nextID
	if err := fn(ctx, tx{m}); err != nil {
		m.rows, m.nextID = snapshot, next
		return err
	}
	return ctx.Err()
}

func (m *Store) WithTimeoutTx(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, tx domain.StreamWriteTx) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return m.WithTx(ctx, fn)
}

// Len reports the number of stored streams.
func (m *Store) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type tx struct{ m *Store }

func (t tx) CreateStream(_ context.Context, owner, title, description string) (*domain.Stream, error) {
	t.m.nextID++
	// microsecond precision, like a timestamptz column
	now := t.m.clock.Now().UTC().Truncate(time.Microsecond)
	s := domain.Stream{
		ID:          t.m.nextID,
		Title:       title,
		Description: description,
		Status:      domain.StatusCreated,
		Owner:       owner,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	t.m.rows[s.ID] = s
	return &s, nil
}

func (t tx) GetStreamForUpdate(_ context.Context, id int64) (*domain.Stream, error) {
	s, ok := t.m.rows[id]
	if !ok {
		return nil, domain.ErrStreamNotFound
	}
	return &s, nil
}

func (t tx) bump(id, version int64, apply func(*domain.Stream)) (*domain.Stream, error) {
	s, ok := t.m.rows[id]
	if !ok {
		return nil, domain.ErrStreamNotFound
	}
	if s.Version != version {
		return nil, domain.ErrPrecondition
	}
	apply(&s)
	s.Version++
	s.UpdatedAt = t.m.clock.Now().UTC().Truncate(time.Microsecond)
	t.m.rows[id] = s
	return &s, nil
}

func (t tx) UpdateStream(_ context.Context, p *domain.UpdateStreamParams) (*domain.Stream, error) {
	return t.bump(p.ID, p.Version, func(s *domain.Stream) {
		s.Title, s.Description = p.Title, p.Description
	})
}

func (t tx) SetStatus(_ context.Context, id int64, status domain.Status, version int64) (*domain.Stream, error) {
	return t.bump(id, version, func(s *domain.Stream) { s.Status = status })
}

func (t tx) DeleteStream(_ context.Context, id int64, version int64) error {
	s, ok := t.m.rows[id]
	if !ok {
		return domain.ErrStreamNotFound
	}
	if s.Version != version {
		return domain.ErrPrecondition
	}
	delete(t.m.rows, id)
	return nil
}
