// Package locker provides keyed mutual exclusion, in-process or backed by redis.
package locker

import (
	"context"
	"errors"
)

var ErrLockNotHeld = errors.New("lock not held")

// Unlock releases a lock obtained from a Locker.
type Unlock func(ctx context.Context) error

// Locker serializes work per key.
type Locker interface {
	// Lock blocks until the key is acquired or ctx is done.
	Lock(ctx context.Context, key string) (Unlock, error)
}
