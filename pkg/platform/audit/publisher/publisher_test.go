package publisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/audit/store/memory"
	"verigate/pkg/requestcontext"
)

func quietLogger() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, quietLogger())
	defer pub.Close()

	ctx := requestcontext.WithRequestID(context.Background(), "req-1")
	err := pub.Emit(ctx, audit.Event{Subject: "ABC123", Action: string(audit.EventIdentitySaved)})
	require.NoError(t, err)

	events, err := store.ListBySubject(context.Background(), "ABC123")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.NotEmpty(t, events[0].ID)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100), quietLogger())

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{Subject: "ABC123", Action: string(audit.EventHistoryAppended)}))
	}
	pub.Close()

	events, err := store.ListBySubject(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")

	err = pub.Emit(context.Background(), audit.Event{Action: string(audit.EventRetryIssued)})
	assert.Error(t, err, "emit after close must not panic")
	pub.Close()
}

type blockingStore struct {
	release chan struct{}
}

func (b *blockingStore) Append(context.Context, audit.Event) error {
	<-b.release
	return nil
}

func TestPublisher_BufferFullDoesNotBlock(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	pub := NewPublisher(store, WithAsyncBuffer(1), quietLogger())

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		full int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if errors.Is(pub.Emit(context.Background(), audit.Event{Action: string(audit.EventRetryIssued)}), ErrBufferFull) {
				mu.Lock()
				full++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Positive(t, full)

	close(store.release)
	pub.Close()
}

func TestPublisher_Timestamps(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, quietLogger())

	before := time.Now()
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Subject: "A", Action: string(audit.EventCaseArchived)}))
	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Subject: "A", Action: string(audit.EventCaseArchived), Timestamp: custom}))

	events, err := store.ListBySubject(context.Background(), "A")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.False(t, events[0].Timestamp.Before(before))
	assert.Equal(t, custom, events[1].Timestamp)
}

func TestPublisher_LogOnly(t *testing.T) {
	pub := NewPublisher(nil, WithAsyncBuffer(4), quietLogger())
	assert.NoError(t, pub.Emit(context.Background(), audit.Event{Action: string(audit.EventWebhookRejected)}))
	pub.Close()
}

func TestUnknownEventDefaultsToOperations(t *testing.T) {
	assert.Equal(t, audit.CategoryOperations, audit.AuditEvent("something_else").Category())
	assert.Equal(t, audit.CategorySecurity, audit.EventCaseNotFound.Category())
}
