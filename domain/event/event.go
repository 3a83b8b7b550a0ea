// Package event defines the closed set of domain events broadcast on
// room topics. Consumers dispatch on the concrete type, never on field
// presence.
package event

import (
	"time"

	"chat-core/domain"

	"github.com/google/uuid"
)

// Action tags a presence notification.
type Action string

const (
	ActionEnter Action = "ENTER"
	ActionLeave Action = "LEAVE"
	ActionSend  Action = "SEND"
)

type DomainEvent interface {
	Topic() Topic
}

// MessageSent is published on the room's message topic right after a
// message was durably appended to the log.
type MessageSent struct {
	ID       uuid.UUID
	RoomID   uuid.UUID
	SenderID uuid.UUID
	Nickname string
	Content  string
	At       time.Time
}

func (e MessageSent) Topic() Topic { return MessageTopic(e.RoomID) }

// PresenceChanged carries a participant snapshot together with the
// action that produced it. For a LEAVE the snapshot is the last known
// state, taken before the record was destroyed. SEND notifications
// ride the message topic next to the message itself; ENTER and LEAVE
// go to the member feed.
type PresenceChanged struct {
	RoomID      uuid.UUID
	Participant domain.Participant
	Action      Action
	At          time.Time
}

func (e PresenceChanged) Topic() Topic {
	if e.Action == ActionSend {
		return MessageTopic(e.RoomID)
	}
	return MemberTopic(e.RoomID)
}

func NewMessageSent(m domain.Message) MessageSent {
	return MessageSent{
		ID:       m.ID,
		RoomID:   m.RoomID,
		SenderID: m.SenderID,
		Nickname: m.Nickname,
		Content:  m.Content,
		At:       m.SentAt,
	}
}

func NewPresenceChanged(p domain.Participant, action Action) PresenceChanged {
	return PresenceChanged{
		RoomID:      p.RoomID,
		Participant: p,
		Action:      action,
		At:          time.Now().UTC(),
	}
}
