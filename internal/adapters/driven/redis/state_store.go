package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.AuthStateStore = (*AuthStateStore)(nil)

const statePrefix = "aide:oauth:state:"

// AuthStateStore implements driven.AuthStateStore using Redis.
// States ride Redis TTLs, so Cleanup has nothing left to do; single-use
// consumption is the atomic GETDEL.
type AuthStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAuthStateStore creates a new Redis-backed state store.
func NewAuthStateStore(client *redis.Client, ttl time.Duration) *AuthStateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &AuthStateStore{client: client, ttl: ttl}
}

// Save stores a new authorization state with TTL-based expiry.
func (s *AuthStateStore) Save(ctx context.Context, state *domain.AuthState) error {
	now := time.Now()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	if state.ExpiresAt.IsZero() {
		state.ExpiresAt = now.Add(s.ttl)
	}

	ttl := time.Until(state.ExpiresAt)
	if ttl <= 0 {
		return nil // Already expired, nothing to store
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal auth state: %w", err)
	}

	if err := s.client.Set(ctx, statePrefix+state.State, data, ttl).Err(); err != nil {
		return fmt.Errorf("save auth state: %w", err)
	}
	return nil
}

// ConsumeOnce atomically retrieves and deletes the state via GETDEL.
func (s *AuthStateStore) ConsumeOnce(ctx context.Context, state string) (*domain.AuthState, error) {
	data, err := s.client.GetDel(ctx, statePrefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consume auth state: %w", err)
	}

	var authState domain.AuthState
	if err := json.Unmarshal(data, &authState); err != nil {
		return nil, fmt.Errorf("unmarshal auth state: %w", err)
	}
	if authState.Expired() {
		return nil, nil
	}
	return &authState, nil
}

// Cleanup is a no-op: Redis TTLs expire states automatically.
func (s *AuthStateStore) Cleanup(ctx context.Context) error {
	return nil
}
