// Package audit captures an append-only trail of coordination milestones.
// Emission is fire-and-forget: a broken audit pipeline must never block an
// invitation or a vote.
package audit

import (
	"context"
	"log/slog"

	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// Sink accepts audit events. Implementations: in-memory store, Kafka.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher enriches and forwards events to a sink.
type Publisher struct {
	sink   Sink
	logger *slog.Logger
}

func NewPublisher(sink Sink, logger *slog.Logger) *Publisher {
	return &Publisher{sink: sink, logger: logger}
}

// Emit fills request-scoped fields and hands the event to the sink. Failures
// are logged and swallowed.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p == nil || p.sink == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Device == "" {
		if d, ok := requestcontext.DeviceInfo(ctx); ok {
			event.Device = d.Browser + "/" + d.OS
		}
	}
	if err := p.sink.Append(ctx, event); err != nil {
		p.logger.WarnContext(ctx, "audit emit failed",
			"action", event.Action,
			"trip_id", event.TripID,
			"error", err,
		)
	}
}
