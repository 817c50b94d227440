package keylock

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrTimeout = errors.New("keylock: wait bound exceeded")

// Locker hands out one mutex per key. Acquire blocks until the key's lock is
// free, the wait bound elapses, or ctx is cancelled.
type Locker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func New() *Locker {
	return &Locker{locks: make(map[string]chan struct{})}
}

func (l *Locker) Acquire(ctx context.Context, key string, wait time.Duration) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	l.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-ch })
		}, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
