package lock

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex is an in-process lock per key. Entries are dropped once nobody
// holds or waits for them.
type KeyedMutex struct {
	entries *xsync.MapOf[string, *keyedEntry]
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: xsync.NewMapOf[string, *keyedEntry]()}
}

// WithLock runs fn while holding key. Waiting stops when ctx is done.
func (k *KeyedMutex) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	e := k.acquireRef(key)
	defer k.releaseRef(key)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.sem }()

	return fn(ctx)
}

func (k *KeyedMutex) acquireRef(key string) *keyedEntry {
	e, _ := k.entries.Compute(key, func(old *keyedEntry, loaded bool) (*keyedEntry, bool) {
		if !loaded {
			old = &keyedEntry{sem: make(chan struct{}, 1)}
		}
		old.refs++
		return old, false
	})
	return e
}

func (k *KeyedMutex) releaseRef(key string) {
	k.entries.Compute(key, func(old *keyedEntry, loaded bool) (*keyedEntry, bool) {
		if !loaded {
			return old, true
		}
		old.refs--
		return old, old.refs <= 0
	})
}

// Len is the number of keys currently held or waited on.
func (k *KeyedMutex) Len() int {
	return k.entries.Size()
}
