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

package locking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"streamhub/modules/clock"
	"streamhub/modules/db/redis"

	"github.com/redis/rueidis/rueidislock"
)

var (
	// ErrLockNotAcquired is returned in try-once mode when another replica
	// holds the lock.
	ErrLockNotAcquired = errors.New("locking: lock not acquired")

	ErrInvalidJob = errors.New("locking: invalid job")
)

// Locker is the part of rueidislock.Locker the executor needs.
type Locker interface {
	WithContext(ctx context.Context, name string) (context.Context, context.CancelFunc, error)
	TryWithContext(ctx context.Context, name string) (context.Context, context.CancelFunc, error)
}

type TaskFunc func(ctx context.Context) error

// Job names a locked task and bounds how long it holds the lock.
//
// AtMostFor is the deadline of the task context. AtLeastFor keeps the lock
// after an early return so the job does not rerun elsewhere right away.
type Job struct {
	Name       string
	AtMostFor  time.Duration
	AtLeastFor time.Duration
}

func (j Job) validate() error {
	switch {
	case j.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidJob)
	case j.AtMostFor < 0 || j.AtLeastFor < 0:
		return fmt.Errorf("%w: negative duration", ErrInvalidJob)
	case j.AtMostFor > 0 && j.AtLeastFor > j.AtMostFor:
		return fmt.Errorf("%w: at-least %s exceeds at-most %s", ErrInvalidJob, j.AtLeastFor, j.AtMostFor)
	}
	return nil
}

type Executor struct {
	locker         Locker
	wait           bool
	acquireTimeout time.Duration
	prefix         string
	clock          clock.Clock
}

type Option func(*Executor)

// WithWaitForLock makes Execute block until the lock is free instead of
// failing with ErrLockNotAcquired.
func WithWaitForLock(wait bool) Option {
	return func(e *Executor) { e.wait = wait }
}

// WithAcquireTimeout bounds the wait for the lock in blocking mode.
func WithAcquireTimeout(d time.Duration) Option {
	return func(e *Executor) { e.acquireTimeout = d }
}

func WithNamePrefix(prefix string) Option {
	return func(e *Executor) { e.prefix = prefix }
}

func WithClock(c clock.Clock) Option {
	return func(e *Executor) {
		if c != nil {
			e.clock = c
		}
	}
}

func New(locker Locker, opts ...Option) *Executor {
	e := &Executor{locker: locker, clock: clock.RealClockProvider()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewLocker connects a rueidislock locker to the Redis described by cfg.
// The caller closes it.
func NewLocker(cfg redis.RedisConfig) (rueidislock.Locker, error) {
	opt, err := redis.ClientOption(cfg)
	if err != nil {
		return nil, err
	}
	return rueidislock.NewLocker(rueidislock.LockerOption{
		ClientOption:   opt,
		KeyPrefix:      cfg.KeyPrefix + "lock",
		KeyMajority:    1,
		NoLoopTracking: true,
	})
}

// Execute runs task under the lock for job. The lock is released when
// Execute returns, whatever the task did.
func (e *Executor) Execute(ctx context.Context, job Job, task TaskFunc) error {
	if task == nil {
		return fmt.Errorf("%w: nil task", ErrInvalidJob)
	}
	if err := job.validate(); err != nil {
		return err
	}
	name := e.prefix + job.Name

	lockCtx, release, err := e.acquire(ctx, name)
	if err != nil {
		return err
	}
	defer release()
	slog.InfoContext(ctx, "lock acquired", slog.String("lock", name))

	taskCtx, cancel := context.WithCancel(lockCtx)
	if job.AtMostFor > 0 {
		taskCtx, cancel = context.WithTimeout(lockCtx, job.AtMostFor)
	}
	defer cancel()

	start := e.clock.Now()
	err = task(taskCtx)
	slog.InfoContext(ctx, "locked task finished",
		slog.String("lock", name),
		slog.Duration("duration", e.clock.Now().Sub(start)),
		slog.Bool("failed", err != nil),
	)

	if job.AtLeastFor > 0 {
		if hold := start.Add(job.AtLeastFor).Sub(e.clock.Now()); hold > 0 {
			timer := time.NewTimer(hold)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
			case <-lockCtx.Done():
			}
		}
	}
	return err
}

func (e *Executor) acquire(ctx context.Context, name string) (context.Context, context.CancelFunc, error) {
	if !e.wait {
		lockCtx, release, err := e.locker.TryWithContext(ctx, name)
		if errors.Is(err, rueidislock.ErrNotLocked) {
			slog.InfoContext(ctx, "lock held elsewhere", slog.String("lock", name))
			return nil, nil, ErrLockNotAcquired
		}
		if err != nil {
			return nil, nil, fmt.Errorf("locking: try %q: %w", name, err)
		}
		return lockCtx, release, nil
	}

	// the lock context descends from acquireCtx, so the timeout must be
	// disarmed instead of cancelled once the lock is held
	acquireCtx, cancelAcquire := context.WithCancel(ctx)
	var timer *time.Timer
	if e.acquireTimeout > 0 {
		timer = time.AfterFunc(e.acquireTimeout, cancelAcquire)
	}
	lockCtx, release, err := e.locker.WithContext(acquireCtx, name)
	if timer != nil {
		timer.Stop()
	}
	if err != nil {
		cancelAcquire()
		if ctx.Err() == nil && acquireCtx.Err() != nil {
			return nil, nil, fmt.Errorf("locking: acquire %q: %w", name, context.DeadlineExceeded)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("locking: acquire %q: %w", name, err)
	}
	return lockCtx, func() {
		release()
		cancelAcquire()
	}, nil
}
