// Package lock provides per-wallet mutual exclusion for settlement.
// Requests for the same wallet serialize across all service instances; the
// conditional balance decrement in the repository remains the last line of
// defense if a lock expires mid-settlement.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder owns the lock.
var ErrNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the key only if the caller still owns it, so an
// expired-and-reacquired lock is never released by the previous holder.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// WalletLocker acquires short-lived locks keyed by wallet address.
type WalletLocker interface {
	Acquire(ctx context.Context, wallet string) (release func(context.Context) error, err error)
}

// RedisLocker implements WalletLocker on a shared redis instance.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisLocker connects a locker to redis. TTL must exceed the longest
// settlement attempt, confirmation wait included.
func NewRedisLocker(addr, password string, db int, ttl time.Duration) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis for locking: %w", err)
	}

	return &RedisLocker{
		client: client,
		ttl:    ttl,
		prefix: "settlement:lock:",
	}, nil
}

// Acquire takes the wallet's lock or fails with ErrNotAcquired. The
// returned release function is safe to call after expiry.
func (l *RedisLocker) Acquire(ctx context.Context, wallet string) (func(context.Context) error, error) {
	key := l.prefix + wallet
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire wallet lock: %w", err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	release := func(ctx context.Context) error {
		if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release wallet lock: %w", err)
		}
		return nil
	}
	return release, nil
}

// Close releases the underlying redis connection.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
