package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
)

// Ensure MockIntegrationStore implements IntegrationStore
var _ driven.IntegrationStore = (*MockIntegrationStore)(nil)

// MockIntegrationStore is an in-memory implementation of IntegrationStore for
// testing. It enforces the single-active invariant the same way the Postgres
// store does.
type MockIntegrationStore struct {
	mu           sync.RWMutex
	integrations map[string]*domain.Integration
}

// NewMockIntegrationStore creates a new MockIntegrationStore
func NewMockIntegrationStore() *MockIntegrationStore {
	return &MockIntegrationStore{
		integrations: make(map[string]*domain.Integration),
	}
}

func (m *MockIntegrationStore) Save(ctx context.Context, integration *domain.Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if integration.Status == domain.StatusActive {
		for _, existing := range m.integrations {
			if existing.ID != integration.ID &&
				existing.UserID == integration.UserID &&
				existing.Provider == integration.Provider &&
				existing.Status == domain.StatusActive {
				return domain.ErrAlreadyExists
			}
		}
	}
	cp := *integration
	m.integrations[integration.ID] = &cp
	return nil
}

func (m *MockIntegrationStore) Get(ctx context.Context, id string) (*domain.Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	integration, ok := m.integrations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *integration
	return &cp, nil
}

func (m *MockIntegrationStore) GetActive(ctx context.Context, userID string, provider domain.Provider) (*domain.Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, integration := range m.integrations {
		if integration.UserID == userID && integration.Provider == provider && integration.Status == domain.StatusActive {
			cp := *integration
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockIntegrationStore) ListForUser(ctx context.Context, userID string, filter driven.IntegrationFilter) ([]*domain.IntegrationSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var summaries []*domain.IntegrationSummary
	for _, integration := range m.integrations {
		if integration.UserID != userID {
			continue
		}
		if filter.Provider != "" && integration.Provider != filter.Provider {
			continue
		}
		if filter.ActiveOnly && integration.Status != domain.StatusActive {
			continue
		}
		summaries = append(summaries, integration.ToSummary())
	}
	return summaries, nil
}

func (m *MockIntegrationStore) ReplaceActive(ctx context.Context, integration *domain.Integration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var replacedID string
	for _, existing := range m.integrations {
		if existing.UserID == integration.UserID &&
			existing.Provider == integration.Provider &&
			existing.Status == domain.StatusActive {
			existing.Status = domain.StatusRevoked
			existing.UpdatedAt = time.Now()
			replacedID = existing.ID
			break
		}
	}
	cp := *integration
	cp.Status = domain.StatusActive
	m.integrations[integration.ID] = &cp
	return replacedID, nil
}

func (m *MockIntegrationStore) UpdateStatus(ctx context.Context, id string, status domain.IntegrationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	integration, ok := m.integrations[id]
	if !ok {
		return domain.ErrNotFound
	}
	integration.Status = status
	integration.UpdatedAt = time.Now()
	return nil
}

func (m *MockIntegrationStore) UpdateExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	integration, ok := m.integrations[id]
	if !ok {
		return domain.ErrNotFound
	}
	integration.ExpiresAt = expiresAt
	integration.UpdatedAt = time.Now()
	return nil
}

func (m *MockIntegrationStore) MarkSynced(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	integration, ok := m.integrations[id]
	if !ok {
		return domain.ErrNotFound
	}
	integration.LastSyncAt = &at
	integration.UpdatedAt = time.Now()
	return nil
}

func (m *MockIntegrationStore) ListExpiring(ctx context.Context, within time.Duration) ([]*domain.Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var expiring []*domain.Integration
	for _, integration := range m.integrations {
		if integration.Status != domain.StatusActive {
			continue
		}
		if integration.NearingExpiry(within) {
			cp := *integration
			expiring = append(expiring, &cp)
		}
	}
	return expiring, nil
}
