package domain

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a live, session scoped membership record.
// It is created on join, refreshed on every inbound activity,
// and destroyed on leave. It never outlives its room membership.
type Participant struct {
	ID           uuid.UUID
	RoomID       uuid.UUID
	Nickname     string
	LastActiveAt time.Time
}

func NewParticipant(roomID uuid.UUID, nickname string) Participant {
	return Participant{
		ID:           uuid.New(),
		RoomID:       roomID,
		Nickname:     nickname,
		LastActiveAt: time.Now().UTC(),
	}
}
