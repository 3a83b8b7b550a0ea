package sink

import (
	"context"
	"log/slog"

	"chat-core/domain/event"
)

// ChannelSink bridges the fan-out to one subscriber's stream. The
// relay worker feeds it; the owning subscription drains Events.
type ChannelSink struct {
	Events chan event.DomainEvent
	log    *slog.Logger
}

func NewChannelSink(log *slog.Logger, bufferSize int) *ChannelSink {
	return &ChannelSink{
		Events: make(chan event.DomainEvent, bufferSize),
		log:    log,
	}
}

// Consume is called by the fan-out. With a full buffer it waits for
// the subscriber up to the delivery context's deadline, then drops the
// event so one stopped reader cannot stall everyone else forever. A
// dropped message stays recoverable through the history snapshot on
// resubscription.
func (s *ChannelSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		s.log.Warn("Subscriber too slow, dropping event", "topic", e.Topic())
		return ctx.Err()
	}
}
