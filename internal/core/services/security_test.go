package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven/mocks"
)

func newTestSecurityService(states *mocks.MockAuthStateStore, audit *mocks.MockAuditLog) *securityService {
	svc := NewSecurityService(SecurityServiceConfig{
		StateStore: states,
		AuditLog:   audit,
	})
	return svc.(*securityService)
}

func TestSecurityService_IssueState(t *testing.T) {
	states := mocks.NewMockAuthStateStore()
	audit := mocks.NewMockAuditLog()
	svc := newTestSecurityService(states, audit)

	state := &domain.AuthState{
		UserID:   "user-1",
		Provider: domain.ProviderGoogle,
		Scopes:   []string{"calendar"},
	}

	token, err := svc.IssueState(context.Background(), state)
	if err != nil {
		t.Fatalf("IssueState failed: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("expected 64 hex chars (32 random bytes), got %d", len(token))
	}
	if state.State != token {
		t.Error("expected state struct to carry the issued token")
	}
	if state.ExpiresAt.Before(time.Now().Add(9 * time.Minute)) {
		t.Error("expected roughly 10 minute expiry")
	}
	if states.Len() != 1 {
		t.Errorf("expected 1 stored state, got %d", states.Len())
	}
	if audit.CountAction(domain.AuditStateIssued) != 1 {
		t.Error("expected a state.issued audit event")
	}
}

func TestSecurityService_IssueState_Unique(t *testing.T) {
	states := mocks.NewMockAuthStateStore()
	audit := mocks.NewMockAuditLog()
	svc := newTestSecurityService(states, audit)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := svc.IssueState(context.Background(), &domain.AuthState{UserID: "user-1"})
		if err != nil {
			t.Fatalf("IssueState failed: %v", err)
		}
		if seen[token] {
			t.Fatal("issued a duplicate state token")
		}
		seen[token] = true
	}
}

func TestSecurityService_ConsumeState_SingleUse(t *testing.T) {
	states := mocks.NewMockAuthStateStore()
	audit := mocks.NewMockAuditLog()
	svc := newTestSecurityService(states, audit)

	issued := &domain.AuthState{
		UserID:       "user-1",
		Provider:     domain.ProviderNotion,
		CodeVerifier: "verifier",
	}
	token, err := svc.IssueState(context.Background(), issued)
	if err != nil {
		t.Fatalf("IssueState failed: %v", err)
	}

	consumed, err := svc.ConsumeState(context.Background(), token)
	if err != nil {
		t.Fatalf("first consume failed: %v", err)
	}
	if consumed.UserID != "user-1" || consumed.Provider != domain.ProviderNotion {
		t.Errorf("consumed state lost flow parameters: %+v", consumed)
	}
	if consumed.CodeVerifier != "verifier" {
		t.Error("consumed state lost the PKCE verifier")
	}

	// Replay must fail.
	if _, err := svc.ConsumeState(context.Background(), token); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on replay, got %v", err)
	}

	if audit.CountAction(domain.AuditStateConsumed) != 1 {
		t.Error("expected a state.consumed audit event")
	}
	if audit.CountAction(domain.AuditStateRejected) != 1 {
		t.Error("expected a state.rejected audit event for the replay")
	}
}

func TestSecurityService_ConsumeState_Unknown(t *testing.T) {
	states := mocks.NewMockAuthStateStore()
	audit := mocks.NewMockAuditLog()
	svc := newTestSecurityService(states, audit)

	if _, err := svc.ConsumeState(context.Background(), "never-issued"); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
	if audit.CountAction(domain.AuditStateRejected) != 1 {
		t.Error("expected a state.rejected audit event")
	}
}

func TestSecurityService_ConsumeState_Expired(t *testing.T) {
	states := mocks.NewMockAuthStateStore()
	audit := mocks.NewMockAuditLog()
	svc := newTestSecurityService(states, audit)
	// Issue states that are already expired.
	svc.ttl = -time.Second

	token, err := svc.IssueState(context.Background(), &domain.AuthState{UserID: "user-1"})
	if err != nil {
		t.Fatalf("IssueState failed: %v", err)
	}

	if _, err := svc.ConsumeState(context.Background(), token); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for expired state, got %v", err)
	}
}

func TestSecurityService_AuditTrail(t *testing.T) {
	states := mocks.NewMockAuthStateStore()
	audit := mocks.NewMockAuditLog()
	svc := newTestSecurityService(states, audit)

	for i := 0; i < 3; i++ {
		if _, err := svc.IssueState(context.Background(), &domain.AuthState{UserID: "user-1"}); err != nil {
			t.Fatalf("IssueState failed: %v", err)
		}
	}
	if _, err := svc.IssueState(context.Background(), &domain.AuthState{UserID: "user-2"}); err != nil {
		t.Fatalf("IssueState failed: %v", err)
	}

	events, err := svc.AuditTrail(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("AuditTrail failed: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("expected 3 events for user-1, got %d", len(events))
	}

	limited, err := svc.AuditTrail(context.Background(), "user-1", 2)
	if err != nil {
		t.Fatalf("AuditTrail failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected limit to apply, got %d events", len(limited))
	}
}

func TestGenerateCodeChallenge(t *testing.T) {
	// RFC 7636 appendix B test vector.
	challenge := generateCodeChallenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk")
	if challenge != "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM" {
		t.Errorf("unexpected S256 challenge: %s", challenge)
	}
}
