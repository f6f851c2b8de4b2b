package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"consentwindow/internal/platform/metrics"
)

// Sink receives outbox rows. The Kafka publisher satisfies it.
type Sink interface {
	Send(ctx context.Context, eventID, key, eventType string, payload []byte) error
}

type entry struct {
	id          string
	aggregateID string
	eventType   string
	payload     []byte
}

// Relay polls consent_outbox and forwards unpublished rows to a Sink.
type Relay struct {
	db        *sql.DB
	sink      Sink
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type RelayOption func(*Relay)

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) RelayOption {
	return func(r *Relay) {
		r.metrics = m
	}
}

func NewRelay(db *sql.DB, sink Sink, opts ...RelayOption) *Relay {
	r := &Relay{
		db:        db,
		sink:      sink,
		interval:  time.Second,
		batchSize: 100,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until ctx is done. Poll failures are logged and retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				n, err := r.RelayOnce(ctx)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						r.logger.WarnContext(ctx, "outbox relay failed", "error", err)
					}
					break
				}
				// drain a backlog without waiting for the next tick
				if n < r.batchSize {
					break
				}
			}
		}
	}
}

// RelayOnce forwards at most one batch and returns how many rows were published. Rows
// are sent in insertion order; the first send failure stops the batch so later rows
// never overtake it.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	entries, err := r.claim(ctx, tx)
	if err != nil {
		return 0, err
	}
	r.metrics.SetOutboxBacklog(len(entries))
	if len(entries) == 0 {
		return 0, nil
	}

	published := make([]string, 0, len(entries))
	var sendErr error
	for _, e := range entries {
		if sendErr = r.sink.Send(ctx, e.id, e.aggregateID, e.eventType, e.payload); sendErr != nil {
			break
		}
		published = append(published, e.id)
	}

	if len(published) > 0 {
		_, err := tx.ExecContext(ctx,
			`UPDATE consent_outbox SET published_at = NOW() WHERE id = ANY($1::uuid[])`,
			pq.Array(published),
		)
		if err != nil {
			return 0, fmt.Errorf("mark outbox entries published: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("commit outbox batch: %w", err)
		}
	}
	if sendErr != nil {
		return len(published), fmt.Errorf("send outbox entry: %w", sendErr)
	}
	return len(published), nil
}

func (r *Relay) claim(ctx context.Context, tx *sql.Tx) ([]entry, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload
		FROM consent_outbox
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batchSize)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.aggregateID, &e.eventType, &e.payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}
