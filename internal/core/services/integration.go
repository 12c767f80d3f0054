package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
	"github.com/custodia-labs/aide-core/internal/core/ports/driving"
)

// Ensure integrationService implements IntegrationService
var _ driving.IntegrationService = (*integrationService)(nil)

// IntegrationServiceConfig holds configuration for the integration service.
type IntegrationServiceConfig struct {
	IntegrationStore driven.IntegrationStore
	TokenStore       driven.TokenStore
	AuditLog         driven.AuditLog
	TokenService     driving.TokenService
	Logger           *slog.Logger
}

type integrationService struct {
	integrations driven.IntegrationStore
	tokens       driven.TokenStore
	audit        driven.AuditLog
	tokenSvc     driving.TokenService
	logger       *slog.Logger
}

// NewIntegrationService creates a new integration service.
func NewIntegrationService(cfg IntegrationServiceConfig) driving.IntegrationService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &integrationService{
		integrations: cfg.IntegrationStore,
		tokens:       cfg.TokenStore,
		audit:        cfg.AuditLog,
		tokenSvc:     cfg.TokenService,
		logger:       logger,
	}
}

// CreateOrReplace activates a new integration, displacing any prior active one
// for the same (user, provider). The displaced integration's token record is
// deleted so its credentials cannot outlive it.
func (s *integrationService) CreateOrReplace(ctx context.Context, integration *domain.Integration, record *domain.TokenRecord) (*domain.Integration, error) {
	if integration.UserID == "" || integration.Provider == "" {
		return nil, fmt.Errorf("%w: user and provider are required", domain.ErrInvalidInput)
	}

	now := time.Now()
	if integration.ID == "" {
		integration.ID = uuid.NewString()
	}
	integration.Status = domain.StatusActive
	integration.CreatedAt = now
	integration.UpdatedAt = now
	if !record.ExpiresAt.IsZero() {
		expiresAt := record.ExpiresAt
		integration.ExpiresAt = &expiresAt
	}

	replacedID, err := s.integrations.ReplaceActive(ctx, integration)
	if err != nil {
		return nil, fmt.Errorf("replace active integration: %w", err)
	}
	if replacedID != "" {
		if err := s.tokens.Delete(ctx, replacedID); err != nil {
			s.logger.Error("failed to delete token record of replaced integration",
				"integration_id", replacedID,
				"error", err,
			)
		}
	}

	record.IntegrationID = integration.ID
	if err := s.tokenSvc.Store(ctx, record); err != nil {
		// Roll back so a connection without credentials is never left active.
		if stErr := s.integrations.UpdateStatus(ctx, integration.ID, domain.StatusRevoked); stErr != nil {
			s.logger.Error("failed to roll back integration after token store failure",
				"integration_id", integration.ID,
				"error", stErr,
			)
		}
		return nil, fmt.Errorf("store token record: %w", err)
	}

	s.recordAudit(ctx, integration, domain.AuditConnected, domain.OutcomeOK, "")
	s.logger.Info("integration connected",
		"integration_id", integration.ID,
		"user_id", integration.UserID,
		"provider", integration.Provider,
		"replaced_id", replacedID,
	)
	return integration, nil
}

// Get returns an integration.
func (s *integrationService) Get(ctx context.Context, id string) (*domain.Integration, error) {
	return s.integrations.Get(ctx, id)
}

// Sync re-validates an integration's token, refreshing when close to expiry.
// A terminal refresh failure is recorded by the token service; Sync only
// propagates it so callers can surface the reconnect requirement.
func (s *integrationService) Sync(ctx context.Context, id string) error {
	if _, _, err := s.tokenSvc.GetValidToken(ctx, id); err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return err
		}
		return fmt.Errorf("sync integration %s: %w", id, err)
	}
	if err := s.integrations.MarkSynced(ctx, id, time.Now()); err != nil {
		s.logger.Warn("failed to mark integration synced", "integration_id", id, "error", err)
	}
	return nil
}

// Revoke revokes the integration, recording the reason in the audit trail.
// Idempotent.
func (s *integrationService) Revoke(ctx context.Context, id, reason string) error {
	integration, err := s.integrations.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	alreadyRevoked := integration.Status == domain.StatusRevoked

	if err := s.tokenSvc.Revoke(ctx, id); err != nil {
		return err
	}

	if !alreadyRevoked {
		s.recordAudit(ctx, integration, domain.AuditRevoked, domain.OutcomeOK, reason)
		s.logger.Info("integration revoked",
			"integration_id", id,
			"user_id", integration.UserID,
			"provider", integration.Provider,
			"reason", reason,
		)
	}
	return nil
}

// ListForUser returns integration summaries for settings/UI consumption.
func (s *integrationService) ListForUser(ctx context.Context, userID string, filter driven.IntegrationFilter) ([]*domain.IntegrationSummary, error) {
	return s.integrations.ListForUser(ctx, userID, filter)
}

func (s *integrationService) recordAudit(ctx context.Context, integration *domain.Integration, action domain.AuditAction, outcome domain.AuditOutcome, detail string) {
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
