package runtime

import (
	"sync"

	"chat-core/contract"
	"chat-core/domain/event"
)

type Set map[string]struct{}

// Registry is the per-process view of which subscriber follows which
// topic. Cross-process visibility is the broker's job; the registry
// only routes frames that already reached this process.
type Registry struct {
	mu           sync.RWMutex
	Sessions     map[string]contract.EventSink // map subscriber -> Sink
	TopicMembers map[event.Topic]Set           // map topic -> subscribers
}

func NewRegistry() *Registry {
	return &Registry{
		Sessions:     make(map[string]contract.EventSink),
		TopicMembers: make(map[event.Topic]Set),
	}
}

// GetSinksForTopic retrieves all active sinks for a topic.
// It performs a two-step lookup:
// 1. Identifies subscriber IDs attached to the topic via TopicMembers.
// 2. Resolves those IDs into actual EventSinks using the Sessions map.
//
// Keeping the sink in a single place means a subscriber following
// both topics of a room still has one connection to manage.
// Returns nil if the topic has no subscribers.
func (r *Registry) GetSinksForTopic(topic event.Topic) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.TopicMembers[topic]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for subscriberID := range members {
		if sink, exists := r.Sessions[subscriberID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// Subscribe registers a subscriber's sink and attaches it to a topic.
// If the topic is not yet tracked it is initialized on the fly.
func (r *Registry) Subscribe(subscriberID string, topic event.Topic, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Sessions[subscriberID] = sink

	if _, ok := r.TopicMembers[topic]; !ok {
		r.TopicMembers[topic] = make(Set)
	}
	r.TopicMembers[topic][subscriberID] = struct{}{}
}

// Unsubscribe detaches a subscriber from a topic and drops its sink.
// Empty topic sets are removed entirely to prevent the map growing
// forever as rooms come and go.
func (r *Registry) Unsubscribe(subscriberID string, topic event.Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.Sessions, subscriberID)

	if members, ok := r.TopicMembers[topic]; ok {
		delete(members, subscriberID)

		if len(members) == 0 {
			delete(r.TopicMembers, topic)
		}
	}
}

var _ contract.IRegistry = (*Registry)(nil)
