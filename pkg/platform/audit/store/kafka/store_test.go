package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "verigate/pkg/platform/audit"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		f.records = append(f.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func TestAppend(t *testing.T) {
	t.Run("record keyed by subject", func(t *testing.T) {
		p := &fakeProducer{}
		store := New(p, "verigate.audit")

		err := store.Append(context.Background(), audit.Event{
			ID:          "evt-1",
			Category:    audit.CategoryCompliance,
			Timestamp:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			Subject:     "ABC123",
			CandidateID: 42,
			Action:      string(audit.EventIdentitySaved),
		})
		require.NoError(t, err)
		require.Len(t, p.records, 1)

		rec := p.records[0]
		assert.Equal(t, "verigate.audit", rec.Topic)
		assert.Equal(t, []byte("ABC123"), rec.Key)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Value, &body))
		assert.Equal(t, "identity_saved", body["action"])
		assert.Equal(t, "compliance", body["category"])
		assert.Equal(t, float64(42), body["candidate_id"])
		assert.Equal(t, "2026-03-01T10:00:00Z", body["timestamp"])
	})

	t.Run("retry correlation ids have their own fields", func(t *testing.T) {
		p := &fakeProducer{}
		err := New(p, "verigate.audit").Append(context.Background(), audit.Event{
			Subject:                "ABC123",
			VerificationID:         "ver_01",
			ExternalID:             "corr-9",
			ReissuedVerificationID: "ver_02",
			Action:                 string(audit.EventRetryIssued),
		})
		require.NoError(t, err)

		var body map[string]any
		require.NoError(t, json.Unmarshal(p.records[0].Value, &body))
		assert.Equal(t, "corr-9", body["external_id"])
		assert.Equal(t, "ver_02", body["reissued_verification_id"])
		assert.Equal(t, "ver_01", body["verification_id"])
		assert.NotContains(t, body, "reason")
		assert.NotContains(t, body, "decision")
	})

	t.Run("produce error is returned", func(t *testing.T) {
		store := New(&fakeProducer{err: errors.New("broker down")}, "t")
		err := store.Append(context.Background(), audit.Event{Action: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker down")
	})
}
