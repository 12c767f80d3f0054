package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
)

func TestTokenService_Store(t *testing.T) {
	f := newTokenFixture(t)

	record := &domain.TokenRecord{
		IntegrationID: "int-1",
		AccessToken:   "access-1",
		RefreshToken:  "refresh-1",
		TokenType:     "Bearer",
		ExpiresAt:     time.Now().Add(time.Hour),
	}
	require.NoError(t, f.svc.Store(context.Background(), record))

	stored, err := f.tokens.Get(context.Background(), "int-1")
	require.NoError(t, err)
	assert.Equal(t, "access-1", stored.AccessToken)
	assert.Equal(t, "refresh-1", stored.RefreshToken)
	assert.EqualValues(t, 1, stored.Version)
}

func TestTokenService_Store_Duplicate(t *testing.T) {
	f := newTokenFixture(t)

	record := &domain.TokenRecord{IntegrationID: "int-1", AccessToken: "access-1"}
	require.NoError(t, f.svc.Store(context.Background(), record))

	err := f.svc.Store(context.Background(), &domain.TokenRecord{
		IntegrationID: "int-1",
		AccessToken:   "access-other",
	})
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestTokenService_GetValidToken_NonExpiringToken(t *testing.T) {
	f := newTokenFixture(t)
	// Zero expiry and no refresh token, the shape of a Notion grant.
	id := f.seed(t, time.Time{}, "")

	f.adapter.RefreshFn = func(ctx context.Context, refreshToken string) (*driven.ProviderToken, error) {
		t.Error("non-expiring token must never be refreshed")
		return nil, domain.ErrNotRefreshable
	}

	token, expiresAt, err := f.svc.GetValidToken(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)
	assert.True(t, expiresAt.IsZero())
}

func TestTokenService_Refresh_ForcedKeepsNonRefreshableAlive(t *testing.T) {
	f := newTokenFixture(t)
	id := f.seed(t, time.Time{}, "")

	record, err := f.svc.Refresh(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "access-1", record.AccessToken)

	integration, err := f.integrations.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, integration.Status)
}

func TestTokenService_Refresh_ForcedRotatesFreshToken(t *testing.T) {
	f := newTokenFixture(t)
	id := f.seed(t, time.Now().Add(time.Hour), "refresh-1")

	f.adapter.RefreshFn = func(ctx context.Context, refreshToken string) (*driven.ProviderToken, error) {
		return &driven.ProviderToken{AccessToken: "access-2", ExpiresIn: 3600}, nil
	}

	record, err := f.svc.Refresh(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "access-2", record.AccessToken)
}

func TestTokenService_Refresh_ConflictTakesStoredRecord(t *testing.T) {
	f := newTokenFixture(t)
	id := f.seed(t, time.Now().Add(-time.Minute), "refresh-1")

	// Simulate a writer on another instance landing between our read and our
	// compare-and-swap update.
	f.adapter.RefreshFn = func(ctx context.Context, refreshToken string) (*driven.ProviderToken, error) {
		stored, err := f.tokens.Get(ctx, id)
		require.NoError(t, err)
		stored.AccessToken = "access-other"
		stored.ExpiresAt = time.Now().Add(time.Hour)
		require.NoError(t, f.tokens.Update(ctx, stored))
		return &driven.ProviderToken{AccessToken: "access-2", ExpiresIn: 3600}, nil
	}

	record, err := f.svc.Refresh(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "access-other", record.AccessToken, "the store's winner must be returned")

	stored, err := f.tokens.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "access-other", stored.AccessToken, "the losing write must not overwrite the store")
}
