// Package compliance provides a fail-closed audit publisher for consent transitions.
//
// Emit is synchronous: the caller blocks until the store write succeeds, and a failed
// write returns an error that MUST fail the calling operation. Consent mutations call
// Emit inside their store transaction so the audit record and the history change commit
// together.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	id "consentwindow/pkg/domain"
	audit "consentwindow/pkg/platform/audit"
)

// Publisher emits compliance events with fail-closed semantics.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit synchronously writes a compliance event to the audit store.
func (p *Publisher) Emit(ctx context.Context, event audit.ComplianceEvent) error {
	start := time.Now()

	if event.OwnerID.IsNil() {
		return errors.New("compliance event requires OwnerID")
	}
	if event.Action == "" {
		return errors.New("compliance event requires Action")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	stored := event.ToEvent()
	stored.ID = uuid.NewString()

	if err := p.store.Append(ctx, stored); err != nil {
		p.metrics.IncPersistFailures()
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
				"action", event.Action,
				"owner_id", event.OwnerID,
				"fingerprint", event.Fingerprint,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}

	p.metrics.ObservePersistDuration(time.Since(start).Seconds())
	p.metrics.IncEventsEmitted()
	return nil
}

// List returns an owner's events, newest last.
func (p *Publisher) List(ctx context.Context, owner id.OwnerID) ([]audit.Event, error) {
	return p.store.ListByOwner(ctx, owner)
}
