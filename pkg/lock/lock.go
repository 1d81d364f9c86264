// Package lock serializes work per key, either inside one process or across replicas through Redis.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when the lock could not be taken before the context ended.
var ErrNotAcquired = errors.New("lock not acquired")

// Release gives the lock back. It is safe to call more than once.
type Release func(ctx context.Context) error

// Locker grants exclusive access per key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}
