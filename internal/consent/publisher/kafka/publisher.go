// Package kafka publishes ConsentGiven notifications to a Kafka topic with franz-go.
//
// Records are keyed by the consent key so every notification for one history lands on
// the same partition, in order. Produce is synchronous: PublishConsentGiven returns only
// once the brokers acknowledged the record, which lets the caller abort its transaction
// on failure.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"consentwindow/internal/consent/models"
	"consentwindow/internal/platform/metrics"
	"consentwindow/pkg/platform/circuit"
	"consentwindow/pkg/platform/sentinel"
)

const (
	EventTypeConsentGiven = "consent_given"

	headerEventType = "event_type"
	headerEventID   = "event_id"
	sinkName        = "kafka"
)

// Producer is the subset of *kgo.Client used here.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Message is the wire form of a ConsentGiven notification.
type Message struct {
	EventID       string `json:"event_id"`
	Owner         string `json:"owner"`
	Fingerprint   string `json:"fingerprint"`
	Index         int    `json:"index"`
	StartsAt      int64  `json:"starts_at"`
	HoursToExpire int    `json:"hours_to_expire"`
	ExpiresAt     int64  `json:"expires_at"`
}

// NewMessage builds the wire form of event with a fresh event ID.
func NewMessage(event models.ConsentGiven) Message {
	return Message{
		EventID:       uuid.NewString(),
		Owner:         event.Owner.String(),
		Fingerprint:   event.Fingerprint.String(),
		Index:         event.Index,
		StartsAt:      event.StartsAt.Unix(),
		HoursToExpire: event.HoursToExpire,
		ExpiresAt:     event.ExpiresAt.Unix(),
	}
}

type Publisher struct {
	producer Producer
	topic    string
	timeout  time.Duration
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func New(producer Producer, topic string, opts ...Option) *Publisher {
	p := &Publisher{
		producer: producer,
		topic:    topic,
		timeout:  5 * time.Second,
		breaker:  circuit.New("kafka-" + topic),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishConsentGiven produces one record for event and waits for the acknowledgement.
func (p *Publisher) PublishConsentGiven(ctx context.Context, event models.ConsentGiven) error {
	msg := NewMessage(event)
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal consent notification: %w", err)
	}
	return p.Send(ctx, msg.EventID, event.Key().String(), EventTypeConsentGiven, payload)
}

// Send produces an already-encoded payload. The outbox relay forwards stored rows
// through it.
func (p *Publisher) Send(ctx context.Context, eventID, key, eventType string, payload []byte) error {
	if !p.breaker.Allow(time.Now()) {
		p.metrics.IncNotification(sinkName, sentinel.ErrUnavailable)
		return fmt.Errorf("kafka publisher circuit open: %w", sentinel.ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(key),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: headerEventType, Value: []byte(eventType)},
			{Key: headerEventID, Value: []byte(eventID)},
		},
	}
	err := p.producer.ProduceSync(ctx, record).FirstErr()
	p.metrics.IncNotification(sinkName, err)
	if err != nil {
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.logger.WarnContext(ctx, "kafka publisher circuit opened", "topic", p.topic, "error", err)
		}
		return fmt.Errorf("produce %s to %s: %w", eventType, p.topic, err)
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.InfoContext(ctx, "kafka publisher circuit closed", "topic", p.topic)
	}
	return nil
}
