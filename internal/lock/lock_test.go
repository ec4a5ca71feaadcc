package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ms-booking/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a Redis client backed by miniredis
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

// exclusive runs n goroutines through locker on one key and reports the
// highest number that were inside the critical section at once.
func exclusive(t *testing.T, locker Locker, n int) int32 {
	var inside, peak int32
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(context.Background(), "session-1", func(ctx context.Context) error {
				cur := atomic.AddInt32(&inside, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	return peak
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	assert.Equal(t, int32(1), exclusive(t, km, 20))
	assert.Equal(t, 0, km.Len(), "entries are dropped once released")
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := NewKeyedMutex()
	entered := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = km.WithLock(context.Background(), "a", func(ctx context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	done := make(chan struct{})
	go func() {
		_ = km.WithLock(context.Background(), "b", func(ctx context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b should not wait for a")
	}
	close(release)
}

func TestKeyedMutexContextCancelled(t *testing.T) {
	km := NewKeyedMutex()
	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go func() {
		_ = km.WithLock(context.Background(), "a", func(ctx context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	called := false
	err := km.WithLock(ctx, "a", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}

func TestKeyedMutexPropagatesError(t *testing.T) {
	km := NewKeyedMutex()
	boom := errors.New("boom")
	err := km.WithLock(context.Background(), "a", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	// The key is usable again afterwards
	err = km.WithLock(context.Background(), "a", func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestRedisLockerOnlyOwnerUnlocks(t *testing.T) {
	client, _ := setupTestRedis(t)
	r := NewRedisLocker(client, logger.Discard(), time.Minute, time.Second)
	ctx := context.Background()

	ok, err := r.Lock(ctx, "s1", "token-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Lock(ctx, "s1", "token-b")
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not acquire")

	require.NoError(t, r.Unlock(ctx, "s1", "token-b"))
	locked, err := r.IsLocked(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, locked, "a foreign token must not release the lock")

	require.NoError(t, r.Unlock(ctx, "s1", "token-a"))
	locked, err = r.IsLocked(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestRedisLockerExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	r := NewRedisLocker(client, logger.Discard(), 5*time.Second, time.Second)
	ctx := context.Background()

	ok, err := r.Lock(ctx, "s1", "token-a")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(6 * time.Second)

	ok, err = r.Lock(ctx, "s1", "token-b")
	require.NoError(t, err)
	assert.True(t, ok, "expired lock can be taken over")

	// The stale holder releasing late leaves the new holder alone
	require.NoError(t, r.Unlock(ctx, "s1", "token-a"))
	locked, err := r.IsLocked(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestRedisLockerWithLockSerializes(t *testing.T) {
	client, _ := setupTestRedis(t)
	r := NewRedisLocker(client, logger.Discard(), time.Minute, 5*time.Second)
	r.RetryInterval = time.Millisecond

	assert.Equal(t, int32(1), exclusive(t, r, 8))

	locked, err := r.IsLocked(context.Background(), "session-1")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestRedisLockerWithLockTimesOut(t *testing.T) {
	client, _ := setupTestRedis(t)
	r := NewRedisLocker(client, logger.Discard(), time.Minute, 30*time.Millisecond)
	r.RetryInterval = 5 * time.Millisecond
	ctx := context.Background()

	ok, err := r.Lock(ctx, "busy", "someone-else")
	require.NoError(t, err)
	require.True(t, ok)

	err = r.WithLock(ctx, "busy", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestChainTakesEveryLocker(t *testing.T) {
	client, _ := setupTestRedis(t)
	r := NewRedisLocker(client, logger.Discard(), time.Minute, 5*time.Second)
	r.RetryInterval = time.Millisecond
	km := NewKeyedMutex()

	chained := Chain(km, r)
	err := chained.WithLock(context.Background(), "s9", func(ctx context.Context) error {
		locked, err := r.IsLocked(ctx, "s9")
		require.NoError(t, err)
		assert.True(t, locked)
		assert.Equal(t, 1, km.Len())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), exclusive(t, chained, 10))
}
