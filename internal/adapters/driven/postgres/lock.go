package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*AdvisoryLock)(nil)

// advisoryClass namespaces this service's advisory locks within the database.
const advisoryClass = int32(0x41444531) // "ADE1"

// AdvisoryLock implements DistributedLock on PostgreSQL session advisory
// locks. A session lock lives and dies with one connection, so each held
// lock pins a dedicated *sql.Conn from the pool: releasing through any other
// connection would silently leave the lock held. Session locks have no TTL;
// the ttl arguments are ignored and Extend is a no-op. The Redis lock is
// preferred when Redis is configured; this adapter keeps single-database
// deployments coordinated without extra infrastructure.
type AdvisoryLock struct {
	db *DB

	mu   sync.Mutex
	held map[string]*sql.Conn
}

// NewAdvisoryLock creates an advisory lock adapter on the given database.
func NewAdvisoryLock(db *DB) *AdvisoryLock {
	return &AdvisoryLock{
		db:   db,
		held: make(map[string]*sql.Conn),
	}
}

// lockObjectID maps a lock name onto the 32-bit object half of the advisory
// key pair. FNV-1a keeps the mapping stable across instances.
func lockObjectID(name string) int32 {
	h := fnv.New32a()
	h.Write([]byte(name))
	return int32(h.Sum32())
}

// Acquire takes the named lock without blocking. The ttl is ignored; the
// lock is held until Release or until this process's pinned connection dies.
func (l *AdvisoryLock) Acquire(ctx context.Context, name string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[name]; ok {
		// This instance already holds it; advisory locks are reentrant
		// per session, but the DistributedLock contract is not.
		return false, nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock %q: %w", name, err)
	}

	var acquired bool
	err = conn.QueryRowContext(ctx,
		"SELECT pg_try_advisory_lock($1, $2)", advisoryClass, lockObjectID(name),
	).Scan(&acquired)
	if err != nil || !acquired {
		conn.Close()
		if err != nil {
			return false, fmt.Errorf("advisory lock %q: %w", name, err)
		}
		return false, nil
	}

	l.held[name] = conn
	return true, nil
}

// Release drops the named lock on the connection that acquired it, then
// returns the connection to the pool. Releasing a lock this instance does
// not hold is a no-op.
func (l *AdvisoryLock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	conn, ok := l.held[name]
	delete(l.held, name)
	l.mu.Unlock()
	if !ok {
		return nil
	}
	defer conn.Close()

	var released bool
	err := conn.QueryRowContext(ctx,
		"SELECT pg_advisory_unlock($1, $2)", advisoryClass, lockObjectID(name),
	).Scan(&released)
	if err != nil {
		return fmt.Errorf("advisory unlock %q: %w", name, err)
	}
	return nil
}

// Extend is a no-op: session advisory locks do not expire.
func (l *AdvisoryLock) Extend(ctx context.Context, name string, _ time.Duration) error {
	return nil
}

// Ping reports whether the database is reachable.
func (l *AdvisoryLock) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}
