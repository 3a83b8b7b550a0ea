package domain

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// JoinCommand creates a new participant session inside a room.
type JoinCommand struct {
	RoomID   uuid.UUID `validate:"required"`
	Nickname string    `validate:"required,min=1,max=32"`
}

// SendCommand posts a message to a room on behalf of a live participant.
// The maximum content length is enforced separately by the orchestrator
// since it is configuration driven.
type SendCommand struct {
	RoomID   uuid.UUID `validate:"required"`
	SenderID uuid.UUID `validate:"required"`
	Content  string    `validate:"required"`
}

func (c JoinCommand) Validate() error { return validate.Struct(c) }

func (c SendCommand) Validate() error { return validate.Struct(c) }
