package audit

import (
	"context"
	"log/slog"
)

// Worker consumes audit events from a channel and fans them out to sinks.
// Sink failures are logged and skipped; the worker only stops on context
// cancellation.
type Worker struct {
	sinks  []Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(inbox <-chan Event, logger *slog.Logger, sinks ...Sink) *Worker {
	return &Worker{sinks: sinks, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			for _, sink := range w.sinks {
				if err := sink.Append(ctx, event); err != nil {
					w.logger.WarnContext(ctx, "audit sink append failed",
						"action", event.Action,
						"error", err,
					)
				}
			}
		}
	}
}
