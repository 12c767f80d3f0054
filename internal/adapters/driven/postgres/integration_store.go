package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
)

// Ensure IntegrationStore implements the interface.
var _ driven.IntegrationStore = (*IntegrationStore)(nil)

// IntegrationStore implements driven.IntegrationStore using PostgreSQL.
// The partial unique index on (user_id, provider) WHERE status='active'
// is the final arbiter of the single-active invariant.
type IntegrationStore struct {
	db *DB
}

// NewIntegrationStore creates a new PostgreSQL-backed integration store.
func NewIntegrationStore(db *DB) *IntegrationStore {
	return &IntegrationStore{db: db}
}

const integrationColumns = `id, user_id, provider, status, scopes, account_id, metadata, expires_at, created_at, updated_at, last_sync_at`

// Save stores a new integration.
func (s *IntegrationStore) Save(ctx context.Context, integration *domain.Integration) error {
	metadata, err := json.Marshal(integration.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO integrations (` + integrationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(ctx, query,
		integration.ID,
		integration.UserID,
		string(integration.Provider),
		string(integration.Status),
		pq.Array(integration.Scopes),
		integration.AccountID,
		metadata,
		integration.ExpiresAt,
		integration.CreatedAt,
		integration.UpdatedAt,
		integration.LastSyncAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("save integration: %w", err)
	}
	return nil
}

// Get retrieves an integration by ID.
func (s *IntegrationStore) Get(ctx context.Context, id string) (*domain.Integration, error) {
	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE id = $1`
	integration, err := scanIntegration(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get integration: %w", err)
	}
	return integration, nil
}

// GetActive retrieves the active integration for a (user, provider) pair.
func (s *IntegrationStore) GetActive(ctx context.Context, userID string, provider domain.Provider) (*domain.Integration, error) {
	query := `
		SELECT ` + integrationColumns + ` FROM integrations
		WHERE user_id = $1 AND provider = $2 AND status = 'active'
	`
	integration, err := scanIntegration(s.db.QueryRowContext(ctx, query, userID, string(provider)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active integration: %w", err)
	}
	return integration, nil
}

// ListForUser returns summaries for a user, optionally filtered.
func (s *IntegrationStore) ListForUser(ctx context.Context, userID string, filter driven.IntegrationFilter) ([]*domain.IntegrationSummary, error) {
	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE user_id = $1`
	args := []any{userID}
	if filter.Provider != "" {
		args = append(args, string(filter.Provider))
		query += fmt.Sprintf(" AND provider = $%d", len(args))
	}
	if filter.ActiveOnly {
		query += " AND status = 'active'"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	defer rows.Close()

	var summaries []*domain.IntegrationSummary
	for rows.Next() {
		integration, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan integration: %w", err)
		}
		summaries = append(summaries, integration.ToSummary())
	}
	return summaries, rows.Err()
}

// ReplaceActive atomically revokes any active integration for the pair and
// saves the new one as active, in a single transaction. If a concurrent
// callback slipped a new active row in between, the insert hits the partial
// unique index and the transaction rolls back.
func (s *IntegrationStore) ReplaceActive(ctx context.Context, integration *domain.Integration) (string, error) {
	metadata, err := json.Marshal(integration.Metadata)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	var replacedID string
	err = tx.QueryRowContext(ctx, `
		UPDATE integrations SET status = 'revoked', updated_at = NOW()
		WHERE user_id = $1 AND provider = $2 AND status = 'active'
		RETURNING id
	`, integration.UserID, string(integration.Provider)).Scan(&replacedID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("revoke prior integration: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO integrations (`+integrationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		integration.ID,
		integration.UserID,
		string(integration.Provider),
		string(domain.StatusActive),
		pq.Array(integration.Scopes),
		integration.AccountID,
		metadata,
		integration.ExpiresAt,
		integration.CreatedAt,
		integration.UpdatedAt,
		integration.LastSyncAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", domain.ErrAlreadyExists
		}
		return "", fmt.Errorf("insert integration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit replace: %w", err)
	}
	return replacedID, nil
}

// UpdateStatus transitions an integration's status.
func (s *IntegrationStore) UpdateStatus(ctx context.Context, id string, status domain.IntegrationStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE integrations SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update integration status: %w", err)
	}
	return requireRow(result)
}

// UpdateExpiry records the current access token expiry after a refresh.
func (s *IntegrationStore) UpdateExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE integrations SET expires_at = $2, updated_at = NOW() WHERE id = $1`,
		id, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("update integration expiry: %w", err)
	}
	return requireRow(result)
}

// MarkSynced records a successful sync.
func (s *IntegrationStore) MarkSynced(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE integrations SET last_sync_at = $2, updated_at = NOW() WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("mark integration synced: %w", err)
	}
	return requireRow(result)
}

// ListExpiring returns active integrations whose token expires within the window.
func (s *IntegrationStore) ListExpiring(ctx context.Context, within time.Duration) ([]*domain.Integration, error) {
	query := `
		SELECT ` + integrationColumns + ` FROM integrations
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < $1
	`
	rows, err := s.db.QueryContext(ctx, query, time.Now().Add(within))
	if err != nil {
		return nil, fmt.Errorf("list expiring integrations: %w", err)
	}
	defer rows.Close()

	var integrations []*domain.Integration
	for rows.Next() {
		integration, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan integration: %w", err)
		}
		integrations = append(integrations, integration)
	}
	return integrations, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntegration(row rowScanner) (*domain.Integration, error) {
	var (
		integration domain.Integration
		provider    string
		status      string
		scopes      pq.StringArray
		metadata    []byte
	)
	err := row.Scan(
		&integration.ID,
		&integration.UserID,
		&provider,
		&status,
		&scopes,
		&integration.AccountID,
		&metadata,
		&integration.ExpiresAt,
		&integration.CreatedAt,
		&integration.UpdatedAt,
		&integration.LastSyncAt,
	)
	if err != nil {
		return nil, err
	}
	integration.Provider = domain.Provider(provider)
	integration.Status = domain.IntegrationStatus(status)
	integration.Scopes = scopes
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &integration.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &integration, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
