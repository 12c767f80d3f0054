package domain

import (
	"testing"
	"time"
)

func TestAuthStateExpired(t *testing.T) {
	live := &AuthState{ExpiresAt: time.Now().Add(time.Minute)}
	if live.Expired() {
		t.Error("state inside its window must not read as expired")
	}

	stale := &AuthState{ExpiresAt: time.Now().Add(-time.Second)}
	if !stale.Expired() {
		t.Error("state past its window must read as expired")
	}
}
