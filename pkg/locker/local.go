package locker

import (
	"context"
	"sync"
)

// Local is an in-process Locker. Entries are reference counted and dropped when unused.
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]*entry)}
}

func (l *Local) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()

	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}

	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)

		return nil, ctx.Err()
	}

	var once sync.Once

	return func(context.Context) error {
		released := false

		once.Do(func() {
			<-e.ch
			l.release(key, e)

			released = true
		})

		if !released {
			return ErrLockNotHeld
		}

		return nil
	}, nil
}

func (l *Local) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}
