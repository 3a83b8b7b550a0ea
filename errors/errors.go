package errors

import "fmt"

var (
	ErrRoomNotFound        = fmt.Errorf("room not found")
	ErrParticipantNotFound = fmt.Errorf("participant not found")
	ErrBrokerUnavailable   = fmt.Errorf("broker unavailable")
	ErrWorkerPanic         = fmt.Errorf("worker panic")
	ErrEmptyWords          = fmt.Errorf("no words have been found")
	ErrUnknownEventKind    = fmt.Errorf("unknown event kind")
)
