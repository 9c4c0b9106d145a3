package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/JonnyWalker81/larder/backend/internal/logger"
)

const (
	defaultTTL      = 30 * time.Second
	defaultMaxWait  = 10 * time.Second
	defaultRetryGap = 50 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every replica pointed at the same Redis.
// A lock expires after TTL even if its holder dies.
type RedisLocker struct {
	client   redis.UniversalClient
	ttl      time.Duration
	maxWait  time.Duration
	retryGap time.Duration
}

// RedisOption configures a RedisLocker
type RedisOption func(*RedisLocker)

// WithTTL sets how long a lock lives without being released
func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) { l.ttl = ttl }
}

// WithMaxWait sets how long Lock retries before returning ErrNotAcquired
func WithMaxWait(d time.Duration) RedisOption {
	return func(l *RedisLocker) { l.maxWait = d }
}

// NewRedisLocker creates a Redis-backed Locker
func NewRedisLocker(client redis.UniversalClient, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client:   client,
		ttl:      defaultTTL,
		maxWait:  defaultMaxWait,
		retryGap: defaultRetryGap,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// Lock retries SET NX until it wins, ctx is done, or maxWait passes
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.maxWait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return l.unlocker(key, token), nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s held elsewhere", ErrNotAcquired, key)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryGap):
		}
	}
}

func (l *RedisLocker) unlocker(key, token string) func() {
	return func() {
		// released on a fresh context so a cancelled run still frees the key
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			logger.Warn("failed to release lock", logger.String("key", key), logger.Err(err))
		}
	}
}
