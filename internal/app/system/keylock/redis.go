// internal/app/system/keylock/redis.go
package keylock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// Redis key prefix for held locks
	lockKeyPrefix = "compliancehub:lock:"

	defaultLockTTL   = 10 * time.Second
	defaultRetryWait = 25 * time.Millisecond
)

// releaseScript deletes the key only if it still holds our token, so a lock
// that expired and was re-acquired elsewhere is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a Locker backed by SET NX PX. Locks expire after TTL so a crashed
// holder cannot wedge a key forever; TTL must exceed the longest critical
// section.
type Redis struct {
	client    *redis.Client
	ttl       time.Duration
	retryWait time.Duration
	log       *zap.Logger
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

// WithTTL sets the lock expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithRetryWait sets the delay between acquisition attempts.
func WithRetryWait(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.retryWait = d
		}
	}
}

// NewRedis constructs a Redis-backed locker.
func NewRedis(client *redis.Client, logger *zap.Logger, opts ...RedisOption) *Redis {
	r := &Redis{
		client:    client,
		ttl:       defaultLockTTL,
		retryWait: defaultRetryWait,
		log:       logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := lockKeyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, err
		}
		if ok {
			break
		}

		t := time.NewTimer(r.retryWait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be done; release on a fresh one.
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, r.client, []string{redisKey}, token).Err(); err != nil {
				r.log.Warn("failed to release lock; it will expire",
					zap.String("key", key),
					zap.Duration("ttl", r.ttl),
					zap.Error(err))
			}
		})
	}, nil
}
