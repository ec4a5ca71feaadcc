package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-booking/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var ErrLockTimeout = errors.New("timed out waiting for lock")

const keyPrefix = "session_lock:"

// releaseScript deletes the key only while it still carries our token, so an
// expired lock taken over by another holder is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a SETNX lock shared by every replica using the same Redis.
type RedisLocker struct {
	Client        *redis.Client
	Logger        *logger.Logger
	TTL           time.Duration
	Wait          time.Duration
	RetryInterval time.Duration
}

func NewRedisLocker(client *redis.Client, log *logger.Logger, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return &RedisLocker{
		Client:        client,
		Logger:        log,
		TTL:           ttl,
		Wait:          wait,
		RetryInterval: 25 * time.Millisecond,
	}
}

// Lock tries once to take key for token.
func (r *RedisLocker) Lock(ctx context.Context, key, token string) (bool, error) {
	return r.Client.SetNX(ctx, keyPrefix+key, token, r.TTL).Result()
}

// Unlock releases key if token still owns it.
func (r *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := releaseScript.Run(ctx, r.Client, []string{keyPrefix + key}, token).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// IsLocked reports whether anyone holds key.
func (r *RedisLocker) IsLocked(ctx context.Context, key string) (bool, error) {
	_, err := r.Client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// WithLock polls until key is free or Wait elapses, then runs fn.
func (r *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()
	deadline := time.Now().Add(r.Wait)

	for {
		ok, err := r.Lock(ctx, key, token)
		if err != nil {
			return fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.RetryInterval):
		}
	}

	defer func() {
		// Release even when the caller's context is already cancelled
		if err := r.Unlock(context.Background(), key, token); err != nil {
			r.Logger.Error("LOCK", fmt.Sprintf("Failed to release %s: %v", key, err))
		}
	}()

	return fn(ctx)
}

// WatchExpirations logs session locks that expired instead of being
// released, which means a holder outlived the TTL. Needs keyspace
// notifications ("Ex") enabled on the server.
func (r *RedisLocker) WatchExpirations(ctx context.Context) {
	if _, err := r.Client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Result(); err != nil {
		r.Logger.Warn("REDIS", fmt.Sprintf("Failed to enable keyspace notifications: %v", err))
	}

	channel := fmt.Sprintf("__keyevent@%d__:expired", r.Client.Options().DB)
	pubsub := r.Client.PSubscribe(ctx, channel)
	r.Logger.Info("REDIS", fmt.Sprintf("Watching lock expirations on %s", channel))

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if strings.HasPrefix(msg.Payload, keyPrefix) {
					r.Logger.Warn("LOCK", fmt.Sprintf("Lock %s expired while held", strings.TrimPrefix(msg.Payload, keyPrefix)))
				}
			}
		}
	}()
}
