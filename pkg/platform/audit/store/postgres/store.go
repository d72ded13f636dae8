package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	audit "imrich/pkg/platform/audit"
)

// Store implements audit.Store on the audit_events table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts an event. Re-appending the same ID is a no-op.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	query := `
		INSERT INTO audit_events (id, action, serial, account_id, status, reason, request_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Action,
		event.Serial,
		event.AccountID,
		event.Status,
		event.Reason,
		event.RequestID,
		event.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListBySerial(ctx context.Context, serial string) ([]audit.Event, error) {
	query := `
		SELECT id, action, serial, account_id, status, reason, request_id, occurred_at
		FROM audit_events
		WHERE serial = $1
		ORDER BY occurred_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, serial)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		if err := rows.Scan(&e.ID, &e.Action, &e.Serial, &e.AccountID, &e.Status, &e.Reason, &e.RequestID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.AuditEvent(e.Action).Category()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
