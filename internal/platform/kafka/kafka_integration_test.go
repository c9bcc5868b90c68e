//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"verigate/internal/platform/config"
	"verigate/internal/platform/kafka"
	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/audit/publisher"
	auditkafka "verigate/pkg/platform/audit/store/kafka"
	"verigate/pkg/testutil/containers"
)

// =============================================================================
// Audit Stream Integration Suite
// =============================================================================
// Justification: topic provisioning and the publish path only mean something
// against a real broker.

type KafkaSuite struct {
	suite.Suite
	broker string
}

func TestKafkaSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSuite))
}

func (s *KafkaSuite) SetupSuite() {
	s.broker = containers.GetManager().GetRedpanda(s.T()).Broker
}

func (s *KafkaSuite) cfg(topic string) config.KafkaConfig {
	return config.KafkaConfig{Brokers: []string{s.broker}, AuditTopic: topic, Partitions: 3, Replication: 1}
}

func (s *KafkaSuite) TestDisabledReturnsNilClient() {
	client, err := kafka.NewClient(context.Background(), config.KafkaConfig{})
	s.Require().NoError(err)
	s.Nil(client)
}

func (s *KafkaSuite) TestEnsureTopicIsIdempotent() {
	ctx := context.Background()
	cfg := s.cfg("verigate.audit.idempotent")
	client, err := kafka.NewClient(ctx, cfg)
	s.Require().NoError(err)
	defer client.Close()

	s.Require().NoError(kafka.EnsureTopic(ctx, client, cfg.AuditTopic, cfg.Partitions, cfg.Replication))
	s.NoError(kafka.EnsureTopic(ctx, client, cfg.AuditTopic, cfg.Partitions, cfg.Replication))
}

func (s *KafkaSuite) TestPublishedEventsReachTopicInOrder() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cfg := s.cfg("verigate.audit.publish")

	producer, err := kafka.NewClient(ctx, cfg)
	s.Require().NoError(err)
	defer producer.Close()
	s.Require().NoError(kafka.EnsureTopic(ctx, producer, cfg.AuditTopic, cfg.Partitions, cfg.Replication))

	pub := publisher.NewPublisher(auditkafka.New(producer, cfg.AuditTopic), publisher.WithAsyncBuffer(16))
	for _, action := range []audit.AuditEvent{audit.EventCaseArchived, audit.EventIdentitySaved, audit.EventReconciliationApplied} {
		s.Require().NoError(pub.Emit(ctx, audit.Event{Subject: "ABC123", CaseID: 7, Action: string(action)}))
	}
	pub.Close()

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(cfg.AuditTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var actions []string
	for len(actions) < 3 {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err(), "timed out waiting for audit records")
		fetches.EachRecord(func(r *kgo.Record) {
			s.Equal("ABC123", string(r.Key))
			var body struct {
				Action string `json:"action"`
				CaseID int64  `json:"case_id"`
			}
			s.Require().NoError(json.Unmarshal(r.Value, &body))
			s.Equal(int64(7), body.CaseID)
			actions = append(actions, body.Action)
		})
	}
	s.Equal([]string{"case_archived", "identity_saved", "reconciliation_applied"}, actions)
}
