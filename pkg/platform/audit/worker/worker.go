package worker

import (
	"context"
	"log/slog"

	audit "verigate/pkg/platform/audit"
)

// Worker drains audit events from a channel into a store. A failed append is
// logged and the worker moves on; audit delivery never blocks the pipeline.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run processes events until the inbox is closed. ctx is passed to the store;
// cancelling it does not stop the loop, so a closed inbox is always drained.
func (w *Worker) Run(ctx context.Context) {
	for event := range w.inbox {
		if err := w.store.Append(ctx, event); err != nil {
			w.logger.WarnContext(ctx, "failed to append audit event",
				"action", event.Action,
				"subject", event.Subject,
				"error", err,
			)
		}
	}
}
