// Package outbox implements the transactional outbox for ConsentGiven notifications on
// the Postgres backend.
//
// Publisher writes the notification into consent_outbox using the transaction carried
// by ctx, so the row commits or rolls back with the consent window itself. Relay then
// forwards committed rows to a Sink in insertion order and marks them published.
// Delivery is at-least-once: consumers deduplicate on the event_id header.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"consentwindow/internal/consent/models"
	"consentwindow/internal/consent/publisher/kafka"
	txcontext "consentwindow/pkg/platform/tx"
	"consentwindow/pkg/requestcontext"
)

var errNoTransaction = errors.New("outbox write requires a consent transaction")

type Publisher struct{}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishConsentGiven inserts the notification into the outbox. It refuses to run
// outside a transaction, where the row could outlive a rolled back grant.
func (p *Publisher) PublishConsentGiven(ctx context.Context, event models.ConsentGiven) error {
	tx, ok := txcontext.From(ctx)
	if !ok {
		return errNoTransaction
	}
	msg := kafka.NewMessage(event)
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal consent notification: %w", err)
	}
	eventID, err := uuid.Parse(msg.EventID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	query := `
		INSERT INTO consent_outbox (id, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = tx.ExecContext(ctx, query,
		eventID,
		event.Key().String(),
		kafka.EventTypeConsentGiven,
		payload,
		requestcontext.Now(ctx).UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}
