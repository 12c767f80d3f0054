package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
)

// Ensure MockAuthStateStore implements AuthStateStore
var _ driven.AuthStateStore = (*MockAuthStateStore)(nil)

// MockAuthStateStore is an in-memory implementation of AuthStateStore for
// testing, with the same single-use consume semantics as the real stores.
type MockAuthStateStore struct {
	mu     sync.Mutex
	states map[string]*domain.AuthState
}

// NewMockAuthStateStore creates a new MockAuthStateStore
func NewMockAuthStateStore() *MockAuthStateStore {
	return &MockAuthStateStore{
		states: make(map[string]*domain.AuthState),
	}
}

func (m *MockAuthStateStore) Save(ctx context.Context, state *domain.AuthState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.states[state.State] = &cp
	return nil
}

func (m *MockAuthStateStore) ConsumeOnce(ctx context.Context, state string) (*domain.AuthState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	authState, ok := m.states[state]
	if !ok {
		return nil, nil
	}
	delete(m.states, state)
	if authState.Expired() {
		return nil, nil
	}
	cp := *authState
	return &cp, nil
}

func (m *MockAuthStateStore) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for key, state := range m.states {
		if now.After(state.ExpiresAt) {
			delete(m.states, key)
		}
	}
	return nil
}

// Len reports the number of stored states. Test helper.
func (m *MockAuthStateStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}
