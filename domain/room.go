// Package domain contains core concepts of the chat system.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Room is a named channel scoping participants and messages.
// The core only reads rooms; creation and deletion belong to the
// room directory collaborator.
type Room struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedAt   time.Time
}

func NewRoom(name, description string) Room {
	return Room{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}

// RoomRef is a lightweight reference to an existing room.
// Holding one proves the room existed at lookup time without
// loading the full record.
type RoomRef uuid.UUID

func (r RoomRef) ID() uuid.UUID { return uuid.UUID(r) }
