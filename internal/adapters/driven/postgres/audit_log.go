package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
)

// Ensure AuditLog implements the interface.
var _ driven.AuditLog = (*AuditLog)(nil)

// AuditLog implements driven.AuditLog using PostgreSQL. Append-only: the
// store exposes no update or delete path.
type AuditLog struct {
	db *DB
}

// NewAuditLog creates a new PostgreSQL-backed audit log.
func NewAuditLog(db *DB) *AuditLog {
	return &AuditLog{db: db}
}

// Record appends an event, filling ID and Time when unset.
func (l *AuditLog) Record(ctx context.Context, event *domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, time, user_id, provider, action, outcome, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		event.ID,
		event.Time,
		event.UserID,
		string(event.Provider),
		string(event.Action),
		string(event.Outcome),
		event.Detail,
	)
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}

// ListForUser returns the most recent events for a user, newest first.
func (l *AuditLog) ListForUser(ctx context.Context, userID string, limit int) ([]*domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, time, user_id, provider, action, outcome, detail
		FROM audit_events WHERE user_id = $1
		ORDER BY time DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []*domain.AuditEvent
	for rows.Next() {
		var (
			event    domain.AuditEvent
			provider string
			action   string
			outcome  string
		)
		if err := rows.Scan(&event.ID, &event.Time, &event.UserID, &provider, &action, &outcome, &event.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Provider = domain.Provider(provider)
		event.Action = domain.AuditAction(action)
		event.Outcome = domain.AuditOutcome(outcome)
		events = append(events, &event)
	}
	return events, rows.Err()
}
