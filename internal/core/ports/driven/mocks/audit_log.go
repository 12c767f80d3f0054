package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
)

// Ensure MockAuditLog implements AuditLog
var _ driven.AuditLog = (*MockAuditLog)(nil)

// MockAuditLog is an in-memory implementation of AuditLog for testing.
type MockAuditLog struct {
	mu     sync.RWMutex
	events []*domain.AuditEvent
}

// NewMockAuditLog creates a new MockAuditLog
func NewMockAuditLog() *MockAuditLog {
	return &MockAuditLog{}
}

func (m *MockAuditLog) Record(ctx context.Context, event *domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *event
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.Time.IsZero() {
		cp.Time = time.Now()
	}
	m.events = append(m.events, &cp)
	return nil
}

func (m *MockAuditLog) ListForUser(ctx context.Context, userID string, limit int) ([]*domain.AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.AuditEvent
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].UserID != userID {
			continue
		}
		result = append(result, m.events[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Events returns a snapshot of all recorded events. Test helper.
func (m *MockAuditLog) Events() []*domain.AuditEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.AuditEvent, len(m.events))
	copy(out, m.events)
	return out
}

// CountAction returns how many events carry the action. Test helper.
func (m *MockAuditLog) CountAction(action domain.AuditAction) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, event := range m.events {
		if event.Action == action {
			count++
		}
	}
	return count
}
