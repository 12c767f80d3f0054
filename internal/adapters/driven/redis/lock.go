package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = "aide:lock:"

// ErrNotLockOwner is returned by Extend when the lock is missing or held by
// another instance.
var ErrNotLockOwner = errors.New("lock not held by this instance")

// guardedScript runs an operation only when the lock value still matches the
// caller's owner token. ARGV[1] is the owner, ARGV[2] the TTL in milliseconds;
// a TTL of 0 deletes the key instead of refreshing it.
var guardedScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) ~= ARGV[1] then
		return 0
	end
	if ARGV[2] == "0" then
		return redis.call("del", KEYS[1])
	end
	return redis.call("pexpire", KEYS[1], ARGV[2])
`)

// Lock is a Redis-backed distributed lock. Each instance holds a unique owner
// token so that release and extend never touch a lock a different instance
// acquired after ours expired.
type Lock struct {
	client *redis.Client
	owner  string
}

// NewLock creates a lock bound to a fresh owner token.
func NewLock(client *redis.Client) *Lock {
	hostname, _ := os.Hostname()
	return &Lock{
		client: client,
		owner:  fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), uuid.NewString()),
	}
}

func lockKey(name string) string {
	return lockPrefix + name
}

// Acquire takes the named lock for at most ttl. Returns false without error
// when another holder (including this instance) already has it.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(name), l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %q: %w", name, err)
	}
	return ok, nil
}

// Release drops the named lock when this instance owns it. Releasing an
// expired or foreign lock is a no-op.
func (l *Lock) Release(ctx context.Context, name string) error {
	_, err := guardedScript.Run(ctx, l.client, []string{lockKey(name)}, l.owner, 0).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %q: %w", name, err)
	}
	return nil
}

// Extend pushes the expiry of a held lock out to ttl from now.
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	res, err := guardedScript.Run(ctx, l.client, []string{lockKey(name)}, l.owner, ttl.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("extend lock %q: %w", name, err)
	}
	if n, ok := res.(int64); !ok || n == 0 {
		return fmt.Errorf("extend lock %q: %w", name, ErrNotLockOwner)
	}
	return nil
}

// Ping reports whether the Redis backend is reachable.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// OwnerID returns this instance's owner token.
func (l *Lock) OwnerID() string {
	return l.owner
}
