// Package lock provides the per-session mutual exclusion used around every
// booking unit of work.
package lock

import "context"

type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Chain takes each locker in order, innermost last. Putting a KeyedMutex in
// front of a RedisLocker keeps goroutines of one replica from polling Redis
// against each other.
func Chain(lockers ...Locker) Locker {
	return chain(lockers)
}

type chain []Locker

func (c chain) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if len(c) == 0 {
		return fn(ctx)
	}
	return c[0].WithLock(ctx, key, func(ctx context.Context) error {
		return c[1:].WithLock(ctx, key, fn)
	})
}
