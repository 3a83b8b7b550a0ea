package event

import "github.com/google/uuid"

// Topic is a named broadcast channel scoped to one room. Every room
// has two independent topics so a subscriber may follow messages
// without the member feed, and vice versa.
type Topic string

// TopicPattern matches every room topic. The broker relay subscribes
// once with this pattern instead of juggling per-room subscriptions.
const TopicPattern = "room.*"

func MessageTopic(roomID uuid.UUID) Topic {
	return Topic("room." + roomID.String() + ".messages")
}

func MemberTopic(roomID uuid.UUID) Topic {
	return Topic("room." + roomID.String() + ".members")
}

func (t Topic) String() string { return string(t) }
