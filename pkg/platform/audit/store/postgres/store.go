package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "consentwindow/pkg/domain"
	audit "consentwindow/pkg/platform/audit"
	txcontext "consentwindow/pkg/platform/tx"
)

// Store implements audit.Store on the consent_audit table. Appends made with a ctx
// carrying a transaction join it, so the audit row commits with the history change.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts an event. Duplicate IDs are ignored.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID, err := uuid.Parse(event.ID)
	if err != nil {
		eventID = uuid.New()
	}
	category := audit.AuditEvent(event.Action).Category()

	query := `
		INSERT INTO consent_audit (
			id, category, timestamp, owner_id, fingerprint, action,
			idx, request_id, client_ip, device
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		eventID,
		string(category),
		event.Timestamp,
		uuid.UUID(event.OwnerID),
		event.Fingerprint,
		event.Action,
		event.Index,
		event.RequestID,
		event.ClientIP,
		event.Device,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByOwner returns an owner's events in the order they were recorded.
func (s *Store) ListByOwner(ctx context.Context, owner id.OwnerID) ([]audit.Event, error) {
	query := `
		SELECT id, category, timestamp, owner_id, fingerprint, action,
			   idx, request_id, client_ip, device
		FROM consent_audit
		WHERE owner_id = $1
		ORDER BY seq ASC
	`
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, uuid.UUID(owner))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			category string
			ownerID  uuid.UUID
		)
		if err := rows.Scan(
			&event.ID,
			&category,
			&event.Timestamp,
			&ownerID,
			&event.Fingerprint,
			&event.Action,
			&event.Index,
			&event.RequestID,
			&event.ClientIP,
			&event.Device,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		event.OwnerID = id.OwnerID(ownerID)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
