package driven

import (
	"context"
	"time"
)

// DistributedLock keeps the background sweep single-instance: only the
// holder of the sweep lock refreshes expiring tokens and clears stale auth
// state, so providers that rotate refresh tokens never see the same token
// presented twice.
type DistributedLock interface {
	// Acquire takes the named lock for at most ttl without blocking.
	// Returns false when another holder already has it. Implementations
	// without native TTL support may hold the lock until Release.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release drops a held lock. Releasing an expired or foreign lock is
	// not an error.
	Release(ctx context.Context, name string) error

	// Extend pushes a held lock's expiry out to ttl from now. Backends
	// without TTLs treat this as a no-op.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
