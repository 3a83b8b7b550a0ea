package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-core/contract"
	"chat-core/domain/event"
)

// Ensure *RelayWorker implements the contract.Worker interface at
// compile time.
var _ contract.Worker = (*RelayWorker)(nil)

// RelayWorker is the receiving half of the fan-out. It holds the one
// pattern subscription of this process, decodes broker frames and
// delivers them to every local sink registered for the frame's topic.
// FIFO per topic per subscriber follows from the broker's per-channel
// ordering and the single relay goroutine.
type RelayWorker struct {
	log         *slog.Logger
	broker      contract.IBroker
	registry    contract.IRegistry
	sinkTimeout time.Duration
}

func NewRelayWorker(log *slog.Logger, broker contract.IBroker,
	registry contract.IRegistry, sinkTimeout time.Duration) *RelayWorker {
	return &RelayWorker{
		log:         log,
		broker:      broker,
		registry:    registry,
		sinkTimeout: sinkTimeout,
	}
}

// Run blocks on the broker stream until the context is canceled or
// the stream drops. A dropped stream returns an error so the
// supervisor resubscribes after its restart delay; events published
// meanwhile are lost for live delivery, which the handshake contract
// accepts (history covers message content on reconnect).
func (w *RelayWorker) Run(ctx context.Context) error {
	frames, err := w.broker.Subscribe(ctx, event.TopicPattern)
	if err != nil {
		return err
	}
	w.log.Info("Relay subscribed", "pattern", event.TopicPattern)

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				w.log.Debug("Broker stream closed")
				return nil
			}
			w.deliver(ctx, frame)
		}
	}
}

func (w *RelayWorker) deliver(ctx context.Context, frame contract.Envelope) {
	evt, err := event.Decode(frame.Payload)
	if err != nil {
		w.log.Error("Dropping undecodable frame", "topic", frame.Topic, "error", err)
		return
	}

	sinks := w.registry.GetSinksForTopic(event.Topic(frame.Topic))
	for _, s := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := s.Consume(sinkCtx, evt); err != nil {
			w.log.Warn("Sink rejected event", "topic", frame.Topic, "error", err)
		}
		cancel()
	}
}
