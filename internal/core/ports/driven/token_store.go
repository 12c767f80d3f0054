package driven

import (
	"context"

	"github.com/custodia-labs/aide-core/internal/core/domain"
)

// TokenStore persists token records keyed by integration ID. Implementations
// encrypt token material before writing and must never log plaintext values.
type TokenStore interface {
	// Put stores the record for a new integration (version starts at 1).
	Put(ctx context.Context, record *domain.TokenRecord) error

	// Get retrieves the decrypted record for an integration.
	// Returns domain.ErrNotFound if no record exists.
	Get(ctx context.Context, integrationID string) (*domain.TokenRecord, error)

	// Update replaces the record if record.Version still matches the stored
	// version, then increments it. Returns domain.ErrConflict when a
	// concurrent writer got there first; the caller should re-read.
	Update(ctx context.Context, record *domain.TokenRecord) error

	// Delete destroys the record. Deleting a missing record is not an error;
	// revocation must be idempotent.
	Delete(ctx context.Context, integrationID string) error
}
