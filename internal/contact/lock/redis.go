package lock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"identity-recon/pkg/platform/sentinel"
)

const (
	// Redis key prefix for identity locks
	lockKeyPrefix = "identity:lock:"

	defaultTTL           = 10 * time.Second
	defaultRetryInterval = 25 * time.Millisecond
)

// releaseScript deletes the lock only while it still holds our token, so an
// expired lock re-acquired by another caller is never removed.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes reconciliations across processes with one
// SET NX PX lock per key. Keys are taken in sorted order.
type RedisLocker struct {
	client        redis.UniversalClient
	ttl           time.Duration
	retryInterval time.Duration
}

// Option configures a RedisLocker.
type Option func(*RedisLocker)

// WithTTL bounds how long a lock survives a crashed holder.
func WithTTL(ttl time.Duration) Option {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRetryInterval sets the poll interval while a key is held elsewhere.
func WithRetryInterval(d time.Duration) Option {
	return func(l *RedisLocker) {
		if d > 0 {
			l.retryInterval = d
		}
	}
}

// NewRedisLocker constructs a Redis-backed key locker.
func NewRedisLocker(client redis.UniversalClient, opts ...Option) *RedisLocker {
	l := &RedisLocker{
		client:        client,
		ttl:           defaultTTL,
		retryInterval: defaultRetryInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Acquire blocks until every key is held or ctx ends. On failure any keys
// already taken are released before returning.
func (l *RedisLocker) Acquire(ctx context.Context, keys []string) (func(context.Context) error, error) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	token := uuid.NewString()
	held := make([]string, 0, len(sorted))
	release := func(ctx context.Context) error {
		var errs []error
		for _, key := range held {
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				errs = append(errs, fmt.Errorf("release %s: %w", key, err))
			}
		}
		return errors.Join(errs...)
	}

	for _, k := range sorted {
		key := lockKeyPrefix + k
		if err := l.acquireOne(ctx, key, token); err != nil {
			if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
				err = errors.Join(err, relErr)
			}
			return nil, err
		}
		held = append(held, key)
	}
	return release, nil
}

func (l *RedisLocker) acquireOne(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("acquire %s: %w", key, ctxErr)
			}
			return fmt.Errorf("%w: acquire %s: %w", sentinel.ErrUnavailable, key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("acquire %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}
