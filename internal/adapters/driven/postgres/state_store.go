package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
)

// Ensure AuthStateStore implements the interface.
var _ driven.AuthStateStore = (*AuthStateStore)(nil)

// DefaultAuthStateTTL is the default validity window for authorization states.
const DefaultAuthStateTTL = 10 * time.Minute

// AuthStateStore implements driven.AuthStateStore using PostgreSQL.
type AuthStateStore struct {
	db  *DB
	ttl time.Duration
}

// NewAuthStateStore creates a new PostgreSQL-backed state store.
func NewAuthStateStore(db *DB) *AuthStateStore {
	return &AuthStateStore{db: db, ttl: DefaultAuthStateTTL}
}

// NewAuthStateStoreWithTTL creates a state store with a custom TTL.
func NewAuthStateStoreWithTTL(db *DB, ttl time.Duration) *AuthStateStore {
	return &AuthStateStore{db: db, ttl: ttl}
}

// Save stores a new authorization state.
func (s *AuthStateStore) Save(ctx context.Context, state *domain.AuthState) error {
	now := time.Now()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	if state.ExpiresAt.IsZero() {
		state.ExpiresAt = now.Add(s.ttl)
	}

	query := `
		INSERT INTO auth_states (state, user_id, provider, scopes, redirect_uri, code_verifier, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		state.State,
		state.UserID,
		string(state.Provider),
		pq.Array(state.Scopes),
		state.RedirectURI,
		state.CodeVerifier,
		state.CreatedAt,
		state.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save auth state: %w", err)
	}
	return nil
}

// ConsumeOnce atomically retrieves and deletes the state.
// Uses DELETE ... RETURNING for atomic single-use semantics.
func (s *AuthStateStore) ConsumeOnce(ctx context.Context, state string) (*domain.AuthState, error) {
	query := `
		DELETE FROM auth_states
		WHERE state = $1 AND expires_at > NOW()
		RETURNING state, user_id, provider, scopes, redirect_uri, code_verifier, created_at, expires_at
	`

	var (
		authState domain.AuthState
		provider  string
		scopes    pq.StringArray
	)
	err := s.db.QueryRowContext(ctx, query, state).Scan(
		&authState.State,
		&authState.UserID,
		&provider,
		&scopes,
		&authState.RedirectURI,
		&authState.CodeVerifier,
		&authState.CreatedAt,
		&authState.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // State not found, expired, or already consumed
	}
	if err != nil {
		return nil, fmt.Errorf("consume auth state: %w", err)
	}
	authState.Provider = domain.Provider(provider)
	authState.Scopes = scopes
	return &authState, nil
}

// Cleanup removes expired states.
func (s *AuthStateStore) Cleanup(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM auth_states WHERE expires_at < NOW()`)
	if err != nil {
		return fmt.Errorf("cleanup auth states: %w", err)
	}
	return nil
}
