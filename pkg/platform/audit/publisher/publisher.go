package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/audit/worker"
	"verigate/pkg/requestcontext"
)

// ErrBufferFull is returned by Emit in async mode when the buffer is full.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher logs every audit event and forwards it to a store, either inline
// or through a bounded buffer drained by a worker. A nil store means log-only.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	inbox  chan audit.Event
	done   chan struct{}
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking with a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.inbox = make(chan audit.Event, n)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.inbox != nil && p.store != nil {
		p.done = make(chan struct{})
		w := worker.NewWorker(p.store, p.inbox, p.logger)
		go func() {
			defer close(p.done)
			w.Run(context.Background())
		}()
	}
	return p
}

// Emit enriches and records an event.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	p.logger.InfoContext(ctx, event.Action,
		"log_type", "audit",
		"category", string(event.Category),
		"subject", event.Subject,
		"candidate_id", event.CandidateID,
		"case_id", event.CaseID,
		"external_id", event.ExternalID,
		"decision", event.Decision,
		"reason", event.Reason,
	)

	if p.store == nil {
		return nil
	}
	if p.done == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errors.New("audit publisher closed")
	}
	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

// Close stops accepting events and waits for buffered ones to be stored.
func (p *Publisher) Close() {
	if p.done == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.inbox)
	p.mu.Unlock()
	<-p.done
}
