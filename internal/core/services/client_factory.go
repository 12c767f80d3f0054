package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
	"github.com/custodia-labs/aide-core/internal/core/ports/driving"
)

// Ensure clientFactory implements both driving ports
var (
	_ driving.ClientFactory     = (*clientFactory)(nil)
	_ driving.ClientInvalidator = (*clientFactory)(nil)
)

// DefaultClientTTL bounds how long a cached client may be reused before the
// factory re-checks token validity.
const DefaultClientTTL = 5 * time.Minute

// ClientFactoryConfig holds configuration for the client factory.
type ClientFactoryConfig struct {
	IntegrationStore driven.IntegrationStore
	TokenService     driving.TokenService

	// ClientTTL overrides the default cache lifetime.
	ClientTTL time.Duration

	Logger *slog.Logger
}

type cachedClient struct {
	client    *driven.ProviderClient
	expiresAt time.Time
}

// clientFactory builds and caches bearer-token HTTP clients per
// (user, provider). Builds are single-flighted so a burst of tool calls for
// the same pair performs one token fetch.
type clientFactory struct {
	integrations driven.IntegrationStore
	tokenSvc     driving.TokenService
	ttl          time.Duration
	logger       *slog.Logger

	buildGroup singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedClient
}

// NewClientFactory creates a new client factory.
func NewClientFactory(cfg ClientFactoryConfig) driving.ClientFactory {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.ClientTTL
	if ttl <= 0 {
		ttl = DefaultClientTTL
	}
	return &clientFactory{
		integrations: cfg.IntegrationStore,
		tokenSvc:     cfg.TokenService,
		ttl:          ttl,
		logger:       logger,
		cache:        make(map[string]cachedClient),
	}
}

func cacheKey(userID string, provider domain.Provider) string {
	return userID + "/" + string(provider)
}

// GetUserClient returns a live client for the user's active integration.
func (f *clientFactory) GetUserClient(ctx context.Context, userID string, provider domain.Provider) (*driven.ProviderClient, error) {
	key := cacheKey(userID, provider)

	f.mu.RLock()
	entry, ok := f.cache[key]
	f.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.client, nil
	}

	result, err, _ := f.buildGroup.Do(key, func() (any, error) {
		// Re-check under the flight: a concurrent winner may have populated
		// the entry while this caller was waiting.
		f.mu.RLock()
		entry, ok := f.cache[key]
		f.mu.RUnlock()
		if ok && time.Now().Before(entry.expiresAt) {
			return entry.client, nil
		}
		return f.build(ctx, userID, provider, key)
	})
	if err != nil {
		return nil, err
	}
	return result.(*driven.ProviderClient), nil
}

func (f *clientFactory) build(ctx context.Context, userID string, provider domain.Provider, key string) (*driven.ProviderClient, error) {
	integration, err := f.integrations.GetActive(ctx, userID, provider)
	if err != nil {
		return nil, fmt.Errorf("get active integration: %w", err)
	}
	if integration == nil {
		return nil, fmt.Errorf("no active %s integration for user %s: %w",
			provider, userID, domain.ErrNotConnected)
	}

	token, tokenExpiry, err := f.tokenSvc.GetValidToken(ctx, integration.ID)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			// Beyond local recovery. Tools surface this as a reconnect prompt.
			return nil, fmt.Errorf("reauthorization required: %w (%w)", domain.ErrNotConnected, err)
		}
		return nil, err
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))

	client := &driven.ProviderClient{
		UserID:        userID,
		Provider:      provider,
		IntegrationID: integration.ID,
		HTTP:          httpClient,
	}

	// Cache no longer than the token stays valid.
	cacheUntil := time.Now().Add(f.ttl)
	if !tokenExpiry.IsZero() && tokenExpiry.Before(cacheUntil) {
		cacheUntil = tokenExpiry
	}

	f.mu.Lock()
	f.cache[key] = cachedClient{client: client, expiresAt: cacheUntil}
	f.mu.Unlock()

	f.logger.Debug("provider client built",
		"user_id", userID,
		"provider", provider,
		"integration_id", integration.ID,
	)
	return client, nil
}

// Invalidate drops the cached client for the pair so the next GetUserClient
// builds against current tokens.
func (f *clientFactory) Invalidate(userID string, provider domain.Provider) {
	key := cacheKey(userID, provider)
	f.mu.Lock()
	delete(f.cache, key)
	f.mu.Unlock()
}
