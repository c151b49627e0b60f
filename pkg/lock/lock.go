// Package lock serialises work on a named resource, either inside one
// process or across every instance sharing a Redis server.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when the lock could not be taken before the
// context expired.
var ErrNotAcquired = errors.New("lock: not acquired")

// Release gives the lock back. It is safe to call more than once.
type Release func()

// Locker hands out exclusive locks keyed by resource name.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}
