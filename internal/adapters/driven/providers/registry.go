package providers

import (
	"sync"

	"github.com/custodia-labs/aide-core/internal/core/domain"
)

// Registry maps providers to their adapters. Adding a provider means
// implementing the Adapter interface and registering it here.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.Provider]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[domain.Provider]Adapter),
	}
}

// Register registers an adapter under its provider.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Provider()] = adapter
}

// Get returns the adapter for a provider, or nil when none is registered.
func (r *Registry) Get(provider domain.Provider) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[provider]
}

// Supported returns all registered providers.
func (r *Registry) Supported() []domain.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]domain.Provider, 0, len(r.adapters))
	for t := range r.adapters {
		types = append(types, t)
	}
	return types
}
