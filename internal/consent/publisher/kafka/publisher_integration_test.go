//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"consentwindow/internal/consent/models"
	consentkafka "consentwindow/internal/consent/publisher/kafka"
	"consentwindow/internal/platform/config"
	platformkafka "consentwindow/internal/platform/kafka"
	id "consentwindow/pkg/domain"
	"consentwindow/pkg/testutil/containers"
)

type KafkaPublisherSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
}

func TestKafkaPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaPublisherSuite))
}

func (s *KafkaPublisherSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
}

func (s *KafkaPublisherSuite) config() config.KafkaConfig {
	return config.KafkaConfig{
		Brokers:           []string{s.redpanda.Broker},
		Topic:             "consent.given." + uuid.NewString()[:8],
		Partitions:        3,
		ReplicationFactor: 1,
		ProduceTimeout:    5 * time.Second,
	}
}

func (s *KafkaPublisherSuite) TestPublishedRecordsArriveKeyedAndOrdered() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := s.config()
	client, err := platformkafka.NewClient(ctx, cfg)
	s.Require().NoError(err)
	defer client.Close()
	s.Require().NoError(platformkafka.EnsureTopic(ctx, client, cfg))
	// a second call sees TopicAlreadyExists and succeeds
	s.Require().NoError(platformkafka.EnsureTopic(ctx, client, cfg))

	publisher := consentkafka.New(client, cfg.Topic, consentkafka.WithTimeout(cfg.ProduceTimeout))

	owner := id.NewOwnerID()
	var hash id.Fingerprint
	hash[31] = 0x07
	start := time.Unix(1_700_000_000, 0).UTC()
	for i := range 3 {
		event := models.ConsentGiven{
			Owner:         owner,
			Fingerprint:   hash,
			Index:         i,
			StartsAt:      start,
			HoursToExpire: 3,
			ExpiresAt:     start.Add(3 * time.Hour),
		}
		s.Require().NoError(publisher.PublishConsentGiven(ctx, event))
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var records []*kgo.Record
	for len(records) < 3 {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err())
		fetches.EachError(func(_ string, _ int32, err error) {
			s.Require().NoError(err)
		})
		records = append(records, fetches.Records()...)
	}

	key := models.Key{Owner: owner, Fingerprint: hash}.String()
	partition := records[0].Partition
	for i, rec := range records {
		s.Equal(key, string(rec.Key))
		s.Equal(partition, rec.Partition)

		headers := map[string]string{}
		for _, h := range rec.Headers {
			headers[h.Key] = string(h.Value)
		}
		s.Equal(consentkafka.EventTypeConsentGiven, headers["event_type"])

		var msg consentkafka.Message
		s.Require().NoError(json.Unmarshal(rec.Value, &msg))
		s.Equal(i, msg.Index)
		s.Equal(headers["event_id"], msg.EventID)
		s.Equal(start.Unix(), msg.StartsAt)
		s.Equal(start.Add(3*time.Hour).Unix(), msg.ExpiresAt)
	}
}
