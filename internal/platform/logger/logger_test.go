package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verigate/pkg/requestcontext"
)

func TestContextHandler(t *testing.T) {
	t.Run("adds correlation ids from context", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter("production", &buf)

		ctx := requestcontext.WithRequestID(context.Background(), "req-1")
		ctx = requestcontext.WithDeliveryID(ctx, "ver-9")
		log.InfoContext(ctx, "webhook received", "identifier", "ABC123")

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "req-1", rec["request_id"])
		assert.Equal(t, "ver-9", rec["verification_id"])
		assert.Equal(t, "ABC123", rec["identifier"])
		assert.NotContains(t, rec, "trace_id")
	})

	t.Run("attrs survive With", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter("production", &buf).With("component", "buro")

		log.InfoContext(requestcontext.WithRequestID(context.Background(), "req-2"), "fetch")

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "buro", rec["component"])
		assert.Equal(t, "req-2", rec["request_id"])
	})

	t.Run("debug is only enabled in development", func(t *testing.T) {
		var buf bytes.Buffer
		NewWithWriter("test", &buf).Debug("hidden")
		assert.Empty(t, buf.String())

		NewWithWriter("development", &buf).Debug("shown")
		assert.Contains(t, buf.String(), "shown")
	})
}

func TestStartSpanWithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()
	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
}
