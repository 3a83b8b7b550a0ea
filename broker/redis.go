package broker

import (
	"context"
	"fmt"
	"log/slog"

	"chat-core/contract"
	"chat-core/domain/event"
	cerrors "chat-core/errors"

	"github.com/redis/go-redis/v9"
)

// RedisBroker relays events across server processes through a shared
// Redis instance, so a client connected to process A receives events
// published by process B for the same room. The connection is owned
// by the caller: acquired at process start, released through Close.
type RedisBroker struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisBroker(client *redis.Client, log *slog.Logger) *RedisBroker {
	return &RedisBroker{client: client, log: log}
}

// Publish is best-effort by contract. Failures are reported as
// ErrBrokerUnavailable and the caller decides whether to drop.
func (b *RedisBroker) Publish(ctx context.Context, topic event.Topic, payload []byte) error {
	if err := b.client.Publish(ctx, topic.String(), payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", cerrors.ErrBrokerUnavailable, err)
	}
	return nil
}

// Subscribe opens a pattern subscription and adapts the go-redis
// stream to broker envelopes. The channel closes when ctx is done or
// the underlying subscription drops.
func (b *RedisBroker) Subscribe(ctx context.Context, pattern string) (<-chan contract.Envelope, error) {
	pubsub := b.client.PSubscribe(ctx, pattern)
	// Force the subscription handshake so a dead broker surfaces here
	// instead of as a silent empty stream.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: %v", cerrors.ErrBrokerUnavailable, err)
	}

	out := make(chan contract.Envelope)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					b.log.Warn("Redis subscription closed", "pattern", pattern)
					return
				}
				select {
				case <-ctx.Done():
					return
				case out <- contract.Envelope{Topic: msg.Channel, Payload: []byte(msg.Payload)}:
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

var _ contract.IBroker = (*RedisBroker)(nil)
