package sink

import (
	"context"

	"chat-core/contract"
	"chat-core/domain/event"
)

// FilterSink forwards events the keep predicate accepts and silently
// drops the rest. The subscription handshake uses it to suppress
// events already represented in the snapshot it handed out.
type FilterSink struct {
	next contract.EventSink
	keep func(e event.DomainEvent) bool
}

func NewFilterSink(next contract.EventSink, keep func(e event.DomainEvent) bool) *FilterSink {
	return &FilterSink{next: next, keep: keep}
}

func (s *FilterSink) Consume(ctx context.Context, e event.DomainEvent) error {
	if !s.keep(e) {
		return nil
	}
	return s.next.Consume(ctx, e)
}

var _ contract.EventSink = (*FilterSink)(nil)
