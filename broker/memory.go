// Package broker provides the publish/subscribe adapters the fan-out
// rides on: Redis for multi-process deployments and an in-memory bus
// for single-process ones. Both satisfy contract.IBroker.
package broker

import (
	"context"
	"log/slog"
	"path"
	"sync"

	"chat-core/contract"
	"chat-core/domain/event"
)

// MemoryBroker is a process-local topic bus. Publishes fan out to
// every subscription whose pattern matches the topic, in publish
// order per subscription.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   []*memorySub
	buffer int
	log    *slog.Logger
	closed bool
}

type memorySub struct {
	pattern string
	ch      chan contract.Envelope
}

func NewMemoryBroker(log *slog.Logger, buffer int) *MemoryBroker {
	return &MemoryBroker{buffer: buffer, log: log}
}

func (b *MemoryBroker) Publish(_ context.Context, topic event.Topic, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	for _, sub := range b.subs {
		if ok, _ := path.Match(sub.pattern, topic.String()); !ok {
			continue
		}
		select {
		case sub.ch <- contract.Envelope{Topic: topic.String(), Payload: payload}:
		default:
			// Slow subscription, the frame is dropped rather than
			// blocking the publisher.
			b.log.Warn("Subscription buffer full, dropping frame", "topic", topic)
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, pattern string) (<-chan contract.Envelope, error) {
	sub := &memorySub{pattern: pattern, ch: make(chan contract.Envelope, b.buffer)}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(sub)
	}()
	return sub.ch, nil
}

func (b *MemoryBroker) remove(sub *memorySub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(s.ch)
			return
		}
	}
}

// SubscriberCount reports how many live subscriptions exist, which
// lets tests wait until the relay is wired before publishing.
func (b *MemoryBroker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
	return nil
}

var _ contract.IBroker = (*MemoryBroker)(nil)
