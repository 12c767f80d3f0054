package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/aide-core/internal/adapters/driven/providers"
	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
	"github.com/custodia-labs/aide-core/internal/core/ports/driving"
)

// Ensure tokenService implements TokenService
var _ driving.TokenService = (*tokenService)(nil)

// DefaultSafetyMargin is how long a token returned by GetValidToken is
// guaranteed to remain valid.
const DefaultSafetyMargin = 60 * time.Second

// TokenServiceConfig holds configuration for the token service.
type TokenServiceConfig struct {
	// IntegrationStore persists integration rows.
	IntegrationStore driven.IntegrationStore

	// TokenStore persists encrypted token records.
	TokenStore driven.TokenStore

	// AuditLog records refresh failures and revocations.
	AuditLog driven.AuditLog

	// Registry resolves provider adapters.
	Registry *providers.Registry

	// SafetyMargin overrides the default 60-second validity guarantee.
	SafetyMargin time.Duration

	Logger *slog.Logger
}

// tokenService orchestrates token validity checks, refresh-on-demand, and
// revocation. Refreshes for one integration are single-flighted: providers
// that rotate refresh tokens treat a concurrent second presentation of the
// old token as reuse and may invalidate the whole grant.
type tokenService struct {
	integrations driven.IntegrationStore
	tokens       driven.TokenStore
	audit        driven.AuditLog
	registry     *providers.Registry
	margin       time.Duration
	logger       *slog.Logger

	refreshGroup singleflight.Group

	mu          sync.RWMutex
	invalidator driving.ClientInvalidator
}

// NewTokenService creates a new token service.
func NewTokenService(cfg TokenServiceConfig) driving.TokenService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	margin := cfg.SafetyMargin
	if margin <= 0 {
		margin = DefaultSafetyMargin
	}
	return &tokenService{
		integrations: cfg.IntegrationStore,
		tokens:       cfg.TokenStore,
		audit:        cfg.AuditLog,
		registry:     cfg.Registry,
		margin:       margin,
		logger:       logger,
	}
}

// SetInvalidator wires the client-cache invalidation hook. The client
// factory depends on this service, so the hook is attached after both are
// constructed.
func (s *tokenService) SetInvalidator(inv driving.ClientInvalidator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidator = inv
}

func (s *tokenService) invalidate(userID string, provider domain.Provider) {
	s.mu.RLock()
	inv := s.invalidator
	s.mu.RUnlock()
	if inv != nil {
		inv.Invalidate(userID, provider)
	}
}

// GetValidToken returns an access token valid for at least the safety margin,
// refreshing first when the stored token is expired or inside the margin.
func (s *tokenService) GetValidToken(ctx context.Context, integrationID string) (string, time.Time, error) {
	record, err := s.tokens.Get(ctx, integrationID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("get token record: %w", err)
	}

	if !record.Expiring(s.margin) {
		return record.AccessToken, record.ExpiresAt, nil
	}

	record, err = s.doRefresh(ctx, integrationID, false)
	if err != nil {
		if errors.Is(err, domain.ErrNotRefreshable) || errors.Is(err, domain.ErrInvalidGrant) {
			return "", time.Time{}, fmt.Errorf("no valid token for integration %s: %w (%w)",
				integrationID, domain.ErrTokenExpired, err)
		}
		return "", time.Time{}, err
	}
	return record.AccessToken, record.ExpiresAt, nil
}

// Refresh forces a token refresh. Concurrent callers for the same
// integration collapse into a single provider call and share its result.
func (s *tokenService) Refresh(ctx context.Context, integrationID string) (*domain.TokenRecord, error) {
	return s.doRefresh(ctx, integrationID, true)
}

func (s *tokenService) doRefresh(ctx context.Context, integrationID string, force bool) (*domain.TokenRecord, error) {
	result, err, _ := s.refreshGroup.Do(integrationID, func() (any, error) {
		return s.refresh(ctx, integrationID, force)
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.TokenRecord), nil
}

func (s *tokenService) refresh(ctx context.Context, integrationID string, force bool) (*domain.TokenRecord, error) {
	integration, err := s.integrations.Get(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("get integration: %w", err)
	}
	if integration.Status == domain.StatusRevoked {
		return nil, fmt.Errorf("integration %s: %w", integrationID, domain.ErrRevoked)
	}

	record, err := s.tokens.Get(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("get token record: %w", err)
	}

	// A concurrent winner (possibly on another instance) may have refreshed
	// already; unless the caller insists, a comfortably fresh token is served
	// as-is. Even a forced refresh leaves records that cannot rotate alone
	// while the current token is still valid.
	if !record.Expiring(s.margin) && (!force || !record.Refreshable()) {
		return record, nil
	}

	if !record.Refreshable() {
		return nil, s.markExpired(ctx, integration,
			fmt.Errorf("integration %s: %w", integrationID, domain.ErrNotRefreshable))
	}

	adapter := s.registry.Get(integration.Provider)
	if adapter == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedProvider, integration.Provider)
	}

	fresh, err := adapter.Refresh(ctx, record.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidGrant) || errors.Is(err, domain.ErrNotRefreshable) {
			s.recordAudit(ctx, integration, domain.AuditRefreshFailed, domain.OutcomeDenied, "provider rejected refresh token")
			return nil, s.markExpired(ctx, integration, err)
		}
		s.logger.Warn("token refresh failed transiently",
			"integration_id", integrationID,
			"provider", integration.Provider,
			"error", err,
		)
		return nil, err
	}

	updated := &domain.TokenRecord{
		IntegrationID: integrationID,
		AccessToken:   fresh.AccessToken,
		RefreshToken:  fresh.RefreshToken,
		TokenType:     fresh.TokenType,
		Scopes:        record.Scopes,
		Version:       record.Version,
	}
	// Retain the previous refresh token unless the provider rotated it.
	if updated.RefreshToken == "" {
		updated.RefreshToken = record.RefreshToken
	}
	if updated.TokenType == "" {
		updated.TokenType = record.TokenType
	}
	if fresh.Scope != "" {
		updated.Scopes = providers.SplitScopes(fresh.Scope)
	}
	if fresh.ExpiresIn > 0 {
		updated.ExpiresAt = time.Now().Add(time.Duration(fresh.ExpiresIn) * time.Second)
	}

	if err := s.tokens.Update(ctx, updated); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// A writer on another instance got there first. The store is the
			// arbiter: take what it has.
			stored, getErr := s.tokens.Get(ctx, integrationID)
			if getErr != nil {
				return nil, fmt.Errorf("reload token record after conflict: %w", getErr)
			}
			return stored, nil
		}
		return nil, fmt.Errorf("store refreshed token: %w", err)
	}

	var expiresAt *time.Time
	if !updated.ExpiresAt.IsZero() {
		expiresAt = &updated.ExpiresAt
	}
	if err := s.integrations.UpdateExpiry(ctx, integrationID, expiresAt); err != nil {
		s.logger.Warn("failed to update integration expiry", "integration_id", integrationID, "error", err)
	}

	s.invalidate(integration.UserID, integration.Provider)
	s.recordAudit(ctx, integration, domain.AuditTokenRefreshed, domain.OutcomeOK, "")
	return updated, nil
}

// Store encrypts and persists a new token record.
func (s *tokenService) Store(ctx context.Context, record *domain.TokenRecord) error {
	if err := s.tokens.Put(ctx, record); err != nil {
		return fmt.Errorf("store token record: %w", err)
	}
	return nil
}

// Revoke best-effort revokes at the provider, then destroys the local record
// and marks the integration revoked regardless of the remote outcome: local
// revocation must never be blocked by a flaky remote call. Idempotent.
func (s *tokenService) Revoke(ctx context.Context, integrationID string) error {
	integration, err := s.integrations.Get(ctx, integrationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get integration: %w", err)
	}

	record, err := s.tokens.Get(ctx, integrationID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("get token record: %w", err)
	}

	if record != nil {
		if adapter := s.registry.Get(integration.Provider); adapter != nil {
			if err := adapter.Revoke(ctx, record.AccessToken); err != nil {
				s.logger.Warn("provider revoke failed, revoking locally anyway",
					"integration_id", integrationID,
					"provider", integration.Provider,
					"error", err,
				)
			}
		}
		if err := s.tokens.Delete(ctx, integrationID); err != nil {
			return fmt.Errorf("delete token record: %w", err)
		}
	}

	if integration.Status != domain.StatusRevoked {
		if err := s.integrations.UpdateStatus(ctx, integrationID, domain.StatusRevoked); err != nil {
			return fmt.Errorf("mark integration revoked: %w", err)
		}
	}

	s.invalidate(integration.UserID, integration.Provider)
	return nil
}

// markExpired transitions the integration to expired and returns the cause.
func (s *tokenService) markExpired(ctx context.Context, integration *domain.Integration, cause error) error {
	if integration.Status == domain.StatusActive {
		if err := s.integrations.UpdateStatus(ctx, integration.ID, domain.StatusExpired); err != nil {
			s.logger.Error("failed to mark integration expired",
				"integration_id", integration.ID,
				"error", err,
			)
		}
		s.invalidate(integration.UserID, integration.Provider)
	}
	return cause
}

func (s *tokenService) recordAudit(ctx context.Context, integration *domain.Integration, action domain.AuditAction, outcome domain.AuditOutcome, detail string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, &domain.AuditEvent{
		UserID:   integration.UserID,
		Provider: integration.Provider,
		Action:   action,
		Outcome:  outcome,
		Detail:   detail,
	})
	if err != nil {
		s.logger.Error("failed to record audit event", "action", action, "error", err)
	}
}
