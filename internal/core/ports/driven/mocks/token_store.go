package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
)

// Ensure MockTokenStore implements TokenStore
var _ driven.TokenStore = (*MockTokenStore)(nil)

// MockTokenStore is an in-memory implementation of TokenStore for testing.
// It honors the compare-and-swap semantics of Update.
type MockTokenStore struct {
	mu      sync.RWMutex
	records map[string]*domain.TokenRecord
}

// NewMockTokenStore creates a new MockTokenStore
func NewMockTokenStore() *MockTokenStore {
	return &MockTokenStore{
		records: make(map[string]*domain.TokenRecord),
	}
}

func (m *MockTokenStore) Put(ctx context.Context, record *domain.TokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[record.IntegrationID]; exists {
		return domain.ErrAlreadyExists
	}
	record.Version = 1
	cp := *record
	m.records[record.IntegrationID] = &cp
	return nil
}

func (m *MockTokenStore) Get(ctx context.Context, integrationID string) (*domain.TokenRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[integrationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *record
	return &cp, nil
}

func (m *MockTokenStore) Update(ctx context.Context, record *domain.TokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.records[record.IntegrationID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != record.Version {
		return domain.ErrConflict
	}
	record.Version++
	cp := *record
	m.records[record.IntegrationID] = &cp
	return nil
}

func (m *MockTokenStore) Delete(ctx context.Context, integrationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, integrationID)
	return nil
}
