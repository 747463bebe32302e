package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"streamhub/core/account/domain"
	"streamhub/modules/clock"
)

var _ domain.UserStore = (*UserStore)(nil)

type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
	clock clock.Clock
}

func New(c clock.Clock) *UserStore {
	if c == nil {
		c = clock.RealClockProvider()
	}
	return &UserStore{users: map[string]domain.User{}, clock: c}
}

func (s *UserStore) CreateUser(_ context.Context, u domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.users[u.Username]; taken {
		return nil, domain.ErrDuplicateUsername
	}
	u.Roles = slices.Clone(u.Roles)
	u.CreatedAt = s.clock.Now().UTC().Truncate(time.Microsecond)
	u.Version = 1
	s.users[u.Username] = u
	return &u, nil
}

func (s *UserStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}
