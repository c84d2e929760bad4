// Package turnlock serializes tutoring turns per conversation so two
// devices cannot interleave appends to the same transcript.
package turnlock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultWait is how long Acquire waits for a busy key before giving up.
const DefaultWait = 5 * time.Second

// ErrBusy is returned by every Locker when another turn holds the key for
// longer than the locker's wait limit.
var ErrBusy = errors.New("conversation turn in progress")

// Locker hands out per-key exclusive locks. Release is idempotent.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Local is an in-process Locker. It only protects a single server instance.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an in-process locker that waits DefaultWait.
func NewLocal() *Local {
	return NewLocalWait(DefaultWait)
}

// NewLocalWait creates an in-process locker with a custom wait limit.
func NewLocalWait(wait time.Duration) *Local {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Local{slots: map[string]*slot{}, wait: wait}
}

// Acquire blocks until key is free. It returns ErrBusy once the wait limit
// passes and ctx.Err() if ctx ends first.
func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s := l.slots[key]
	if s == nil {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	t := time.NewTimer(l.wait)
	defer t.Stop()
	select {
	case s.ch <- struct{}{}:
	case <-t.C:
		l.drop(key, s)
		return nil, ErrBusy
	case <-ctx.Done():
		l.drop(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.drop(key, s)
		})
	}, nil
}

func (l *Local) drop(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// held reports how many keys currently have waiters or holders.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
