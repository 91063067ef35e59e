package memory

import (
	"context"
	"sync"
)

// Locker hands out per-key tokens inside one process. Keys that nobody holds
// or waits for are dropped, so the table only grows with contention.
type Locker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	token chan struct{}
	refs  int
}

func NewLocker() *Locker {
	return &Locker{slots: make(map[string]*slot)}
}

func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	s := l.ref(key)
	select {
	case s.token <- struct{}{}:
		return l.releaser(key, s), nil
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	}
}

func (l *Locker) TryAcquire(_ context.Context, key string) (func(), bool, error) {
	s := l.ref(key)
	select {
	case s.token <- struct{}{}:
		return l.releaser(key, s), true, nil
	default:
		l.unref(key, s)
		return nil, false, nil
	}
}

func (l *Locker) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		s = &slot{token: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Locker) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *Locker) releaser(key string, s *slot) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.token
			l.unref(key, s)
		})
	}
}

func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
