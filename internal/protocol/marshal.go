package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownMessageType is returned when encoding or decoding a payload whose
// type is not part of the protocol
var ErrUnknownMessageType = errors.New("unknown message type")

// NewMessage wraps a payload in an envelope stamped with now
func NewMessage(payload any, now time.Time) (*Message, error) {
	var t MessageType
	switch payload.(type) {
	case *Action, Action:
		t = TypeAction
	case *State, State:
		t = TypeState
	case *Error, Error:
		t = TypeError
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessageType, payload)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", t, err)
	}
	return &Message{Type: t, Data: data, Timestamp: now}, nil
}

// Marshal serializes a payload inside its envelope
func Marshal(payload any, now time.Time) ([]byte, error) {
	msg, err := NewMessage(payload, now)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

// Unmarshal decodes an envelope and returns its typed payload: *Action,
// *State or *Error.
func Unmarshal(data []byte) (any, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}

	var payload any
	switch msg.Type {
	case TypeAction:
		payload = &Action{}
	case TypeState:
		payload = &State{}
	case TypeError:
		payload = &Error{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}

	if len(msg.Data) == 0 {
		return nil, fmt.Errorf("%s message has no data", msg.Type)
	}
	if err := json.Unmarshal(msg.Data, payload); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", msg.Type, err)
	}
	return payload, nil
}
