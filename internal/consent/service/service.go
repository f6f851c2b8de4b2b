package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"consentwindow/internal/consent/models"
	"consentwindow/internal/platform/metrics"
	"consentwindow/internal/platform/tracer"
	"consentwindow/pkg/attrs"
	id "consentwindow/pkg/domain"
	dErrors "consentwindow/pkg/domain-errors"
	"consentwindow/pkg/platform/audit"
	"consentwindow/pkg/platform/middleware/metadata"
	"consentwindow/pkg/platform/sentinel"
	"consentwindow/pkg/requestcontext"
)

// Store is the dumb, ordered, keyed log of consent windows. It enforces no business
// rules; only its tail is ever mutated.
type Store interface {
	History(ctx context.Context, key models.Key) ([]models.Window, error)
	Append(ctx context.Context, key models.Key, window models.Window) error
	ReplaceLast(ctx context.Context, key models.Key, window models.Window) error
	RemoveLast(ctx context.Context, key models.Key) error
}

// ConsentStoreTx provides a transactional boundary for consent store mutations.
// Store calls made with the ctx passed to fn join the transaction; an error from fn
// discards every write made inside it.
type ConsentStoreTx interface {
	RunInTx(ctx context.Context, key models.Key, fn func(ctx context.Context) error) error
}

//go:generate mockgen -source=service.go -destination=mocks/service-mocks.go -package=mocks

// Publisher delivers the ConsentGiven notification. It is called inside the
// transaction, so a failure aborts the grant.
type Publisher interface {
	PublishConsentGiven(ctx context.Context, event models.ConsentGiven) error
}

// AuditPublisher records compliance events with fail-closed semantics.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

const defaultBatchConcurrency = 16

// Service implements the consent window state machine on top of a Store. Callers are
// identified by requestcontext.OwnerID and the clock is requestcontext.Now, both taken
// from ctx.
type Service struct {
	store            Store
	tx               ConsentStoreTx
	publisher        Publisher
	auditPublisher   AuditPublisher
	logger           *slog.Logger
	metrics          *metrics.Metrics
	batchConcurrency int
}

type Option func(s *Service)

func WithPublisher(publisher Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithBatchConcurrency bounds parallel lookups in ConsentsAreValid.
func WithBatchConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}

// New constructs a Service.
func New(store Store, tx ConsentStoreTx, opts ...Option) *Service {
	s := &Service{
		store:            store,
		tx:               tx,
		logger:           slog.New(slog.DiscardHandler),
		batchConcurrency: defaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// now is the ambient clock at whole-second resolution.
func (s *Service) now(ctx context.Context) time.Time {
	return requestcontext.Now(ctx).UTC().Truncate(time.Second)
}

func callerFrom(ctx context.Context) (id.OwnerID, error) {
	owner := requestcontext.OwnerID(ctx)
	if owner.IsNil() {
		return id.OwnerID{}, dErrors.New(dErrors.CodeUnauthorized, "caller identity required")
	}
	return owner, nil
}

func requireDuration(hoursToExpire int) error {
	if hoursToExpire < models.MinHoursToExpire {
		return dErrors.New(dErrors.CodeInsufficientDuration, "consent must last at least 3 hours")
	}
	if hoursToExpire > models.MaxHoursToExpire {
		return dErrors.New(dErrors.CodeValidation, "hours_to_expire is too large")
	}
	return nil
}

// lastWindow loads the history for key and returns it with its last window.
func (s *Service) lastWindow(ctx context.Context, key models.Key) ([]models.Window, models.Window, error) {
	history, err := s.store.History(ctx, key)
	if err != nil {
		return nil, models.Window{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load consent history")
	}
	if len(history) == 0 {
		return nil, models.Window{}, dErrors.New(dErrors.CodeNoConsentFound, "no consent found")
	}
	return history, history[len(history)-1], nil
}

// translate maps infrastructure failures onto domain codes; coded errors pass through.
func translate(err error, message string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNoEntry):
		return dErrors.Wrap(err, dErrors.CodeNoConsentFound, "no consent found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "consent history was modified concurrently")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, message)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, message)
	}
}

// emitAudit writes a compliance event. Called inside transactions: an error aborts the commit.
func (s *Service) emitAudit(ctx context.Context, action audit.AuditEvent, key models.Key, index int, now time.Time) error {
	if s.auditPublisher == nil {
		return nil
	}
	err := s.auditPublisher.Emit(ctx, audit.ComplianceEvent{
		Timestamp:   now,
		OwnerID:     key.Owner,
		Fingerprint: key.Fingerprint.String(),
		Action:      string(action),
		Index:       index,
		RequestID:   requestcontext.RequestID(ctx),
		ClientIP:    metadata.GetClientIP(ctx),
		Device:      metadata.GetDevice(ctx),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record consent audit event")
	}
	return nil
}

// logAudit writes the audit log line and mirrors it as an event on the active span.
func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	span := trace.SpanFromContext(ctx)
	if owner := attrs.ExtractString(attributes, "owner_id"); owner != "" {
		span.SetAttributes(tracer.StringAttr("consent.owner", owner))
	}
	span.AddEvent(string(event), trace.WithAttributes(attrs.ToAttributes(attributes)...))
	args := append(attributes, "event", string(event), "log_type", "audit")
	s.logger.InfoContext(ctx, string(event), args...)
}

// observe finishes the span and records the outcome of op.
func (s *Service) observe(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(dErrors.GetCode(err))
		tracer.RecordError(span, err)
		if dErrors.HasCode(err, dErrors.CodeInternal) || dErrors.HasCode(err, dErrors.CodeTimeout) {
			s.logger.ErrorContext(ctx, "consent operation failed",
				"op", op,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	} else {
		tracer.SetOK(span)
	}
	s.metrics.IncOperation(op, outcome)
	s.metrics.ObserveOperationDuration(op, time.Since(start))
}
