package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
)

// Ensure TokenStore implements the interface.
var _ driven.TokenStore = (*TokenStore)(nil)

// tokenSecrets is the encrypted payload. Only the token strings live inside
// the blob; expiry, type, and scopes stay queryable in plain columns.
type tokenSecrets struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// TokenStore implements driven.TokenStore using PostgreSQL with AES-256-GCM
// encryption at rest. Concurrent writers are serialized by the version
// column: an Update presenting a stale version returns domain.ErrConflict.
type TokenStore struct {
	db        *DB
	encryptor *SecretEncryptor
}

// NewTokenStore creates a new PostgreSQL-backed token store.
func NewTokenStore(db *DB, encryptor *SecretEncryptor) *TokenStore {
	return &TokenStore{db: db, encryptor: encryptor}
}

// Put stores the record for a new integration.
func (s *TokenStore) Put(ctx context.Context, record *domain.TokenRecord) error {
	blob, err := s.encryptor.Encrypt(tokenSecrets{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
	})
	if err != nil {
		return fmt.Errorf("encrypt token record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO token_records (integration_id, secret_blob, token_type, expires_at, scopes, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, NOW())
	`,
		record.IntegrationID,
		blob,
		record.TokenType,
		nullableTime(record.ExpiresAt),
		pq.Array(record.Scopes),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("put token record: %w", err)
	}
	record.Version = 1
	return nil
}

// Get retrieves and decrypts the record for an integration.
func (s *TokenStore) Get(ctx context.Context, integrationID string) (*domain.TokenRecord, error) {
	var (
		record    domain.TokenRecord
		blob      []byte
		expiresAt sql.NullTime
		scopes    pq.StringArray
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT integration_id, secret_blob, token_type, expires_at, scopes, version
		FROM token_records WHERE integration_id = $1
	`, integrationID).Scan(
		&record.IntegrationID,
		&blob,
		&record.TokenType,
		&expiresAt,
		&scopes,
		&record.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token record: %w", err)
	}

	var secrets tokenSecrets
	if err := s.encryptor.Decrypt(blob, &secrets); err != nil {
		return nil, fmt.Errorf("decrypt token record: %w", err)
	}

	record.AccessToken = secrets.AccessToken
	record.RefreshToken = secrets.RefreshToken
	record.Scopes = scopes
	if expiresAt.Valid {
		record.ExpiresAt = expiresAt.Time
	}
	return &record, nil
}

// Update replaces the record when record.Version still matches the stored
// version. Returns domain.ErrConflict when a concurrent writer won.
func (s *TokenStore) Update(ctx context.Context, record *domain.TokenRecord) error {
	blob, err := s.encryptor.Encrypt(tokenSecrets{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
	})
	if err != nil {
		return fmt.Errorf("encrypt token record: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE token_records
		SET secret_blob = $2, token_type = $3, expires_at = $4, scopes = $5,
		    version = version + 1, updated_at = NOW()
		WHERE integration_id = $1 AND version = $6
	`,
		record.IntegrationID,
		blob,
		record.TokenType,
		nullableTime(record.ExpiresAt),
		pq.Array(record.Scopes),
		record.Version,
	)
	if err != nil {
		return fmt.Errorf("update token record: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the row is gone or the version moved under us.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM token_records WHERE integration_id = $1)`,
			record.IntegrationID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check token record: %w", err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	record.Version++
	return nil
}

// Delete destroys the record. Missing records are not an error.
func (s *TokenStore) Delete(ctx context.Context, integrationID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM token_records WHERE integration_id = $1`, integrationID)
	if err != nil {
		return fmt.Errorf("delete token record: %w", err)
	}
	return nil
}

// ReencryptAll re-encrypts every stored blob with a new encryptor. This is
// the offline key-rotation migration pass: decrypt with the old key, encrypt
// with the new, one row at a time inside a transaction.
func (s *TokenStore) ReencryptAll(ctx context.Context, newEncryptor *SecretEncryptor) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin reencrypt: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT integration_id, secret_blob FROM token_records FOR UPDATE`)
	if err != nil {
		return 0, fmt.Errorf("list token records: %w", err)
	}

	type pending struct {
		id   string
		blob []byte
	}
	var updates []pending
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan token record: %w", err)
		}
		newBlob, err := reencryptBlob(s.encryptor, newEncryptor, blob)
		if err != nil {
			rows.Close()
			return 0, fmt.Errorf("record %s: %w", id, err)
		}
		updates = append(updates, pending{id: id, blob: newBlob})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, u := range updates {
		if _, err := tx.ExecContext(ctx,
			`UPDATE token_records SET secret_blob = $2, updated_at = NOW() WHERE integration_id = $1`,
			u.id, u.blob,
		); err != nil {
			return 0, fmt.Errorf("rewrite record %s: %w", u.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reencrypt: %w", err)
	}
	s.encryptor = newEncryptor
	return len(updates), nil
}

// reencryptBlob decrypts a stored blob with the key it was written under and
// seals the same secrets with the replacement key.
func reencryptBlob(oldEnc, newEnc *SecretEncryptor, blob []byte) ([]byte, error) {
	var secrets tokenSecrets
	if err := oldEnc.Decrypt(blob, &secrets); err != nil {
		return nil, fmt.Errorf("decrypt with old key: %w", err)
	}
	newBlob, err := newEnc.Encrypt(secrets)
	if err != nil {
		return nil, fmt.Errorf("encrypt with new key: %w", err)
	}
	return newBlob, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
