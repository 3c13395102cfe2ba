package protocol

import (
	"fmt"

	"github.com/google/uuid"
)

// ChannelEvents groups the events replayed for one channel.
type ChannelEvents struct {
	ChannelID uuid.UUID
	Events    []Event
}

// SubscribeSuccess confirms a subscription and carries any replayed events.
type SubscribeSuccess struct {
	Channels []ChannelEvents
}

func (s *SubscribeSuccess) Type() MessageType {
	return TypeSubscribeSuccess
}

// Events flattens the replayed events in wire order.
func (s *SubscribeSuccess) Events() []Event {
	var events []Event
	for _, ch := range s.Channels {
		events = append(events, ch.Events...)
	}

	return events
}

func (s *SubscribeSuccess) Marshal() ([]byte, error) {
	w, err := NewFrameWriter(ProtocolSubscription, TypeSubscribeSuccess)
	if err != nil {
		return nil, err
	}

	if len(s.Channels) > MaxListSize {
		return nil, fmt.Errorf("list of %d channels exceeds %d: %w",
			len(s.Channels), MaxListSize, ErrEncoding)
	}

	w.WriteUint8(uint8(len(s.Channels)))

	for _, ch := range s.Channels {
		if len(ch.Events) > MaxListSize {
			return nil, fmt.Errorf("list of %d events exceeds %d: %w",
				len(ch.Events), MaxListSize, ErrEncoding)
		}

		w.WriteIdentifier(ch.ChannelID)
		w.WriteUint8(uint8(len(ch.Events)))

		for _, ev := range ch.Events {
			w.WriteIdentifier(ev.EventID)
			if err := w.WriteBlob(ev.Payload); err != nil {
				return nil, err
			}
		}
	}

	return w.Bytes(), nil
}

func (s *SubscribeSuccess) unmarshal(r *Reader) error {
	numChannels, err := r.ReadUint8()
	if err != nil {
		return err
	}

	s.Channels = make([]ChannelEvents, 0, numChannels)

	for i := 0; i < int(numChannels); i++ {
		channelID, err := r.ReadIdentifier()
		if err != nil {
			return err
		}

		numEvents, err := r.ReadUint8()
		if err != nil {
			return err
		}

		ch := ChannelEvents{
			ChannelID: channelID,
			Events:    make([]Event, 0, numEvents),
		}

		for j := 0; j < int(numEvents); j++ {
			eventID, err := r.ReadIdentifier()
			if err != nil {
				return err
			}

			payload, err := r.ReadBlob()
			if err != nil {
				return err
			}

			ch.Events = append(ch.Events, Event{
				ChannelID: channelID,
				EventID:   eventID,
				Payload:   payload,
			})
		}

		s.Channels = append(s.Channels, ch)
	}

	return nil
}

// EventData carries a single event streamed as soon as it was published.
type EventData struct {
	Event
}

func (e *EventData) Type() MessageType {
	return TypeEventData
}

func (e *EventData) Marshal() ([]byte, error) {
	w, err := NewFrameWriter(ProtocolSubscription, TypeEventData)
	if err != nil {
		return nil, err
	}

	w.WriteIdentifier(e.ChannelID)
	w.WriteIdentifier(e.EventID)

	if err := w.WriteBlob(e.Payload); err != nil {
		return nil, err
	}

	return w.Bytes(), nil
}

func (e *EventData) unmarshal(r *Reader) (err error) {
	if e.ChannelID, err = r.ReadIdentifier(); err != nil {
		return err
	}

	if e.EventID, err = r.ReadIdentifier(); err != nil {
		return err
	}

	e.Payload, err = r.ReadBlob()
	return err
}

type unmarshaler interface {
	Message
	unmarshal(r *Reader) error
}

// ReadMessage decodes a complete subscription protocol frame.
//
// Frames for other protocols, and unknown message types, return
// ErrUnknownMessage. Frames that end early return ErrTruncatedMessage; a
// message is only returned once every one of its fields has been decoded.
func ReadMessage(data []byte) (Message, error) {
	r := NewReader(data)

	header, err := r.ReadHeader()
	if err != nil {
		return nil, err
	}

	if header.Protocol != ProtocolSubscription {
		return nil, fmt.Errorf("protocol %d: %w", header.Protocol, ErrUnknownMessage)
	}

	var msg unmarshaler

	switch header.Type {
	case TypeSubscribeRequest:
		msg = &SubscribeRequest{}
	case TypeSubscribeSuccess:
		msg = &SubscribeSuccess{}
	case TypeEventData:
		msg = &EventData{}
	case TypeAckEvents:
		msg = &AckRequest{}
	default:
		return nil, fmt.Errorf("message type %d: %w", header.Type, ErrUnknownMessage)
	}

	if err := msg.unmarshal(r); err != nil {
		return nil, fmt.Errorf("Failed to parse %s: %w", header.Type, err)
	}

	return msg, nil
}

var _ Message = (*SubscribeSuccess)(nil)
var _ Message = (*EventData)(nil)
