package lock

import (
	"context"
	"sync"
	"time"

	"verigate/internal/income/ports"
	"verigate/pkg/platform/sentinel"
)

// InMemory is a process-local lock for single-instance deployments and tests.
type InMemory struct {
	mu   sync.Mutex
	held map[string]chan struct{}
	wait time.Duration
}

func NewInMemory(wait time.Duration) *InMemory {
	return &InMemory{held: make(map[string]chan struct{}), wait: wait}
}

func (l *InMemory) Lock(ctx context.Context, key string) (ports.Unlock, error) {
	timer := time.NewTimer(l.wait)
	defer timer.Stop()
	for {
		l.mu.Lock()
		released, busy := l.held[key]
		if !busy {
			ch := make(chan struct{})
			l.held[key] = ch
			l.mu.Unlock()
			var once sync.Once
			return func(context.Context) error {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, key)
					l.mu.Unlock()
					close(ch)
				})
				return nil
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-released:
		case <-timer.C:
			return nil, sentinel.ErrLocked
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
