package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
	"github.com/custodia-labs/aide-core/internal/core/ports/driving"
)

// Ensure securityService implements SecurityService
var _ driving.SecurityService = (*securityService)(nil)

// DefaultStateTTL is the validity window for authorization states.
const DefaultStateTTL = 10 * time.Minute

// SecurityServiceConfig holds configuration for the security service.
type SecurityServiceConfig struct {
	// StateStore manages authorization flow state.
	StateStore driven.AuthStateStore

	// AuditLog records security-relevant events.
	AuditLog driven.AuditLog

	// StateTTL overrides the default 10-minute state validity window.
	StateTTL time.Duration

	Logger *slog.Logger
}

// securityService implements the SecurityService interface.
type securityService struct {
	states driven.AuthStateStore
	audit  driven.AuditLog
	ttl    time.Duration
	logger *slog.Logger
}

// NewSecurityService creates a new security service.
func NewSecurityService(cfg SecurityServiceConfig) driving.SecurityService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &securityService{
		states: cfg.StateStore,
		audit:  cfg.AuditLog,
		ttl:    ttl,
		logger: logger,
	}
}

// IssueState creates and stores a single-use CSRF state for the flow.
func (s *securityService) IssueState(ctx context.Context, state *domain.AuthState) (string, error) {
	// 32 random bytes: well above the 128-bit unguessability floor.
	token, err := generateRandomToken(32)
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}

	now := time.Now()
	state.State = token
	state.CreatedAt = now
	state.ExpiresAt = now.Add(s.ttl)

	if err := s.states.Save(ctx, state); err != nil {
		return "", fmt.Errorf("save auth state: %w", err)
	}

	s.recordAudit(ctx, &domain.AuditEvent{
		UserID:   state.UserID,
		Provider: state.Provider,
		Action:   domain.AuditStateIssued,
		Outcome:  domain.OutcomeOK,
	})
	return token, nil
}

// ConsumeState performs the one-time read. Unknown, expired, and replayed
// states are indistinguishable to the caller: all fail with ErrInvalidState
// and land in the audit trail as a rejected callback.
func (s *securityService) ConsumeState(ctx context.Context, state string) (*domain.AuthState, error) {
	authState, err := s.states.ConsumeOnce(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("consume auth state: %w", err)
	}
	if authState == nil {
		s.recordAudit(ctx, &domain.AuditEvent{
			Action:  domain.AuditStateRejected,
			Outcome: domain.OutcomeDenied,
			Detail:  "unknown, expired, or already-consumed state",
		})
		return nil, domain.ErrInvalidState
	}

	s.recordAudit(ctx, &domain.AuditEvent{
		UserID:   authState.UserID,
		Provider: authState.Provider,
		Action:   domain.AuditStateConsumed,
		Outcome:  domain.OutcomeOK,
	})
	return authState, nil
}

// AuditTrail returns recent security events for a user.
func (s *securityService) AuditTrail(ctx context.Context, userID string, limit int) ([]*domain.AuditEvent, error) {
	return s.audit.ListForUser(ctx, userID, limit)
}

// recordAudit appends an event; audit failures are logged, never raised,
// so a broken trail can't block the flow itself.
func (s *securityService) recordAudit(ctx context.Context, event *domain.AuditEvent) {
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Error("failed to record audit event",
			"action", event.Action,
			"error", err,
		)
	}
}

// generateRandomToken generates a cryptographically secure random token.
func generateRandomToken(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// generateCodeChallenge creates a PKCE code challenge from a verifier (S256 method).
func generateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
