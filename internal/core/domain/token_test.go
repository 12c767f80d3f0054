package domain

import (
	"testing"
	"time"
)

func TestTokenRecordRefreshable(t *testing.T) {
	with := &TokenRecord{RefreshToken: "rt-1"}
	if !with.Refreshable() {
		t.Error("record with a refresh token must be refreshable")
	}

	without := &TokenRecord{}
	if without.Refreshable() {
		t.Error("record without a refresh token must not be refreshable")
	}
}

func TestTokenRecordExpiring(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		margin    time.Duration
		expected  bool
	}{
		{"well before expiry", time.Now().Add(time.Hour), time.Minute, false},
		{"inside margin", time.Now().Add(30 * time.Second), time.Minute, true},
		{"already expired", time.Now().Add(-time.Minute), time.Minute, true},
		{"non-expiring", time.Time{}, time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &TokenRecord{ExpiresAt: tt.expiresAt}
			if got := r.Expiring(tt.margin); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestTokenRecordExpired(t *testing.T) {
	past := &TokenRecord{ExpiresAt: time.Now().Add(-time.Second)}
	if !past.Expired() {
		t.Error("past expiry must read as expired")
	}

	future := &TokenRecord{ExpiresAt: time.Now().Add(time.Hour)}
	if future.Expired() {
		t.Error("future expiry must not read as expired")
	}

	// Zero expiry means the provider issued a non-expiring token
	forever := &TokenRecord{}
	if forever.Expired() {
		t.Error("non-expiring token must never read as expired")
	}
}
