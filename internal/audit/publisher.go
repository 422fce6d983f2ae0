package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/Coritp27/sysga-sub001/pkg/requestcontext"
)

// Publisher is the port services emit audit events through. Implementations
// must be non-blocking from the caller's point of view; losing an audit event
// is preferable to failing the business operation.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Sink receives events from the worker. Kafka, Postgres and memory sinks all
// satisfy this.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Store is a queryable audit sink.
type Store interface {
	Sink
	ListByCard(ctx context.Context, cardNumber string) ([]Event, error)
}

// ChannelPublisher hands events to the worker's inbox and drops them (with a
// log line) when the inbox is full.
type ChannelPublisher struct {
	inbox  chan<- Event
	logger *slog.Logger
}

func NewChannelPublisher(inbox chan<- Event, logger *slog.Logger) *ChannelPublisher {
	return &ChannelPublisher{inbox: inbox, logger: logger}
}

func (p *ChannelPublisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit inbox full, dropping event", "action", event.Action)
	}
	return nil
}

// Log emits an event enriched with request-scoped metadata, logging the
// emission failure instead of propagating it. Services call this so audit
// problems never fail the business operation.
func Log(ctx context.Context, logger *slog.Logger, publisher Publisher, event Event) {
	event.Principal = requestcontext.Principal(ctx)
	event.ClientIP = requestcontext.ClientIP(ctx)
	event.Device = requestcontext.Device(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}

	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
