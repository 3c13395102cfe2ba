package protocol

import "github.com/google/uuid"

type Marshaler interface {
	Marshal() ([]byte, error)
}

// Message is any frame of the subscription protocol.
type Message interface {
	Marshaler
	Type() MessageType
}

// Event is a single published event addressed to a channel.
type Event struct {
	ChannelID uuid.UUID
	EventID   uuid.UUID
	Payload   []byte
}
