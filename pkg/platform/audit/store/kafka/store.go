package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "verigate/pkg/platform/audit"
)

// Producer is the subset of *kgo.Client the store needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Store implements audit.Store by producing JSON records to a Kafka topic,
// keyed by subject so one identifier's events stay ordered within a partition.
type Store struct {
	producer Producer
	topic    string
}

func New(producer Producer, topic string) *Store {
	return &Store{producer: producer, topic: topic}
}

// payload is the JSON structure published to Kafka.
type payload struct {
	ID             string `json:"id"`
	Category       string `json:"category"`
	Timestamp      string `json:"timestamp"`
	Subject        string `json:"subject,omitempty"`
	CandidateID    int64  `json:"candidate_id,omitempty"`
	CaseID         int64  `json:"case_id,omitempty"`
	VerificationID string `json:"verification_id,omitempty"`
	ExternalID     string `json:"external_id,omitempty"`
	Reissued       string `json:"reissued_verification_id,omitempty"`
	Action         string `json:"action"`
	Decision       string `json:"decision,omitempty"`
	Reason         string `json:"reason,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	body, err := json.Marshal(payload{
		ID:             event.ID,
		Category:       string(event.Category),
		Timestamp:      event.Timestamp.UTC().Format(time.RFC3339Nano),
		Subject:        event.Subject,
		CandidateID:    event.CandidateID,
		CaseID:         event.CaseID,
		VerificationID: event.VerificationID,
		ExternalID:     event.ExternalID,
		Reissued:       event.ReissuedVerificationID,
		Action:         event.Action,
		Decision:       event.Decision,
		Reason:         event.Reason,
		RequestID:      event.RequestID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Subject),
		Value: body,
		Headers: []kgo.RecordHeader{
			{Key: "category", Value: []byte(event.Category)},
			{Key: "action", Value: []byte(event.Action)},
		},
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}
