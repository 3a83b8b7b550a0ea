package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event.
// The sender nickname is captured at send time so the message stays
// readable after the sender has left and its record was destroyed.
type Message struct {
	ID       uuid.UUID // unique identifier
	RoomID   uuid.UUID
	SenderID uuid.UUID
	Nickname string
	Content  string
	SentAt   time.Time
}
