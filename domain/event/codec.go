package event

import (
	"encoding/json"
	"fmt"

	"chat-core/errors"
)

// Wire format for events crossing the broker. A tagged envelope keeps
// the variant set closed on the decoding side as well.
const (
	kindMessageSent     = "message_sent"
	kindPresenceChanged = "presence_changed"
)

type envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func Encode(e DomainEvent) ([]byte, error) {
	var kind string
	switch e.(type) {
	case MessageSent:
		kind = kindMessageSent
	case PresenceChanged:
		kind = kindPresenceChanged
	default:
		return nil, fmt.Errorf("%w: %T", errors.ErrUnknownEventKind, e)
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Kind: kind, Payload: payload})
}

func Decode(data []byte) (DomainEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	switch env.Kind {
	case kindMessageSent:
		var e MessageSent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, err
		}
		return e, nil
	case kindPresenceChanged:
		var e PresenceChanged
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEventKind, env.Kind)
	}
}
