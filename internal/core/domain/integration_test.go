package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		input    string
		expected Provider
	}{
		{"google", ProviderGoogle},
		{"microsoft", ProviderMicrosoft},
		{"notion", ProviderNotion},
		{"youtube", ProviderYouTube},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseProvider(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestParseProvider_Unknown(t *testing.T) {
	for _, input := range []string{"", "slack", "Google", "GOOGLE"} {
		t.Run(input, func(t *testing.T) {
			if _, err := ParseProvider(input); !errors.Is(err, ErrUnsupportedProvider) {
				t.Errorf("expected ErrUnsupportedProvider, got %v", err)
			}
		})
	}
}

func TestProviderDisplayName(t *testing.T) {
	tests := []struct {
		provider Provider
		expected string
	}{
		{ProviderGoogle, "Google"},
		{ProviderMicrosoft, "Microsoft"},
		{ProviderNotion, "Notion"},
		{ProviderYouTube, "YouTube"},
		{Provider("custom"), "custom"},
	}

	for _, tt := range tests {
		if got := tt.provider.DisplayName(); got != tt.expected {
			t.Errorf("%s: expected %q, got %q", tt.provider, tt.expected, got)
		}
	}
}

func TestIntegrationIsActive(t *testing.T) {
	tests := []struct {
		status   IntegrationStatus
		expected bool
	}{
		{StatusActive, true},
		{StatusPending, false},
		{StatusExpired, false},
		{StatusRevoked, false},
	}

	for _, tt := range tests {
		i := &Integration{Status: tt.status}
		if got := i.IsActive(); got != tt.expected {
			t.Errorf("%s: expected %v, got %v", tt.status, tt.expected, got)
		}
	}
}

func TestIntegrationNearingExpiry(t *testing.T) {
	soon := time.Now().Add(5 * time.Minute)
	later := time.Now().Add(time.Hour)

	tests := []struct {
		name      string
		expiresAt *time.Time
		window    time.Duration
		expected  bool
	}{
		{"inside window", &soon, 10 * time.Minute, true},
		{"outside window", &later, 10 * time.Minute, false},
		{"no expiry", nil, 10 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := &Integration{ExpiresAt: tt.expiresAt}
			if got := i.NearingExpiry(tt.window); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestIntegrationToSummary(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	i := &Integration{
		ID:        "int-1",
		UserID:    "user-1",
		Provider:  ProviderGoogle,
		Status:    StatusActive,
		Scopes:    []string{"openid", "email"},
		AccountID: "acct-1",
		Metadata:  map[string]string{"name": "Test User"},
		ExpiresAt: &expiry,
	}

	s := i.ToSummary()
	if s.ID != i.ID || s.Provider != i.Provider || s.Status != i.Status {
		t.Errorf("summary fields mismatch: %+v", s)
	}
	if s.AccountID != "acct-1" || len(s.Scopes) != 2 {
		t.Errorf("summary fields mismatch: %+v", s)
	}
	if s.ExpiresAt == nil || !s.ExpiresAt.Equal(expiry) {
		t.Errorf("expiry not carried: %+v", s.ExpiresAt)
	}
}
