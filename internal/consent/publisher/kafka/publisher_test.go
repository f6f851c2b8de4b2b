package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"consentwindow/internal/consent/models"
	id "consentwindow/pkg/domain"
	"consentwindow/pkg/platform/circuit"
	"consentwindow/pkg/platform/sentinel"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if f.err == nil {
			f.records = append(f.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func sampleEvent() models.ConsentGiven {
	var fp id.Fingerprint
	fp[0] = 0xab
	start := time.Unix(2000, 0).UTC()
	return models.ConsentGiven{
		Owner:         id.OwnerID(uuid.New()),
		Fingerprint:   fp,
		Index:         3,
		StartsAt:      start,
		HoursToExpire: 4,
		ExpiresAt:     start.Add(4 * time.Hour),
	}
}

func header(r *kgo.Record, key string) string {
	for _, h := range r.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestPublishConsentGiven(t *testing.T) {
	producer := &fakeProducer{}
	pub := New(producer, "consent.given")
	event := sampleEvent()

	require.NoError(t, pub.PublishConsentGiven(context.Background(), event))
	require.Len(t, producer.records, 1)

	record := producer.records[0]
	assert.Equal(t, "consent.given", record.Topic)
	assert.Equal(t, event.Key().String(), string(record.Key))
	assert.Equal(t, EventTypeConsentGiven, header(record, headerEventType))

	var msg Message
	require.NoError(t, json.Unmarshal(record.Value, &msg))
	assert.Equal(t, header(record, headerEventID), msg.EventID)
	assert.Equal(t, event.Owner.String(), msg.Owner)
	assert.Equal(t, event.Fingerprint.String(), msg.Fingerprint)
	assert.Equal(t, 3, msg.Index)
	assert.Equal(t, int64(2000), msg.StartsAt)
	assert.Equal(t, 4, msg.HoursToExpire)
	assert.Equal(t, int64(2000+4*3600), msg.ExpiresAt)
}

func TestPublishFailureOpensCircuit(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker not available")}
	pub := New(producer, "consent.given",
		WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))))

	for range 2 {
		err := pub.PublishConsentGiven(context.Background(), sampleEvent())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker not available")
	}

	producer.err = nil
	err := pub.PublishConsentGiven(context.Background(), sampleEvent())
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Empty(t, producer.records)
}

func TestPublishTrialCallClosesCircuit(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker not available")}
	breaker := circuit.New("test", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(1), circuit.WithCooldown(0))
	pub := New(producer, "consent.given", WithBreaker(breaker))

	require.Error(t, pub.PublishConsentGiven(context.Background(), sampleEvent()))
	assert.True(t, breaker.IsOpen())

	producer.err = nil
	require.NoError(t, pub.PublishConsentGiven(context.Background(), sampleEvent()))
	assert.False(t, breaker.IsOpen())
	assert.Len(t, producer.records, 1)
}
