package protocol

import (
	"github.com/google/uuid"
)

// SubscribeRequest asks the service to start delivering events for a set of
// channels on this connection.
type SubscribeRequest struct {
	ProviderID   uuid.UUID
	PublicToken  string
	PrivateToken string
	DeviceID     uuid.UUID
	ChannelIDs   []uuid.UUID
	Options      uint8
}

func (s *SubscribeRequest) Type() MessageType {
	return TypeSubscribeRequest
}

// Replay reports whether the request asks for stored events to be replayed.
func (s *SubscribeRequest) Replay() bool {
	return s.Options&OptionReplay != 0
}

func (s *SubscribeRequest) Marshal() ([]byte, error) {
	w, err := NewFrameWriter(ProtocolSubscription, TypeSubscribeRequest)
	if err != nil {
		return nil, err
	}

	w.WriteIdentifier(s.ProviderID)

	if err := w.WriteString(s.PublicToken); err != nil {
		return nil, err
	}

	if err := w.WriteString(s.PrivateToken); err != nil {
		return nil, err
	}

	w.WriteIdentifier(s.DeviceID)

	if err := w.WriteIdentifiers(s.ChannelIDs); err != nil {
		return nil, err
	}

	w.WriteUint8(s.Options)

	return w.Bytes(), nil
}

func (s *SubscribeRequest) unmarshal(r *Reader) (err error) {
	if s.ProviderID, err = r.ReadIdentifier(); err != nil {
		return err
	}

	if s.PublicToken, err = r.ReadString(); err != nil {
		return err
	}

	if s.PrivateToken, err = r.ReadString(); err != nil {
		return err
	}

	if s.DeviceID, err = r.ReadIdentifier(); err != nil {
		return err
	}

	if s.ChannelIDs, err = r.ReadIdentifiers(); err != nil {
		return err
	}

	s.Options, err = r.ReadUint8()
	return err
}

// AckRequest acknowledges delivered events so the service stops redelivering them.
type AckRequest struct {
	EventIDs []uuid.UUID
}

func (a *AckRequest) Type() MessageType {
	return TypeAckEvents
}

func (a *AckRequest) Marshal() ([]byte, error) {
	w, err := NewFrameWriter(ProtocolSubscription, TypeAckEvents)
	if err != nil {
		return nil, err
	}

	if err := w.WriteIdentifiers(a.EventIDs); err != nil {
		return nil, err
	}

	return w.Bytes(), nil
}

func (a *AckRequest) unmarshal(r *Reader) (err error) {
	a.EventIDs, err = r.ReadIdentifiers()
	return err
}

// ChunkIdentifiers splits ids into lists that each fit a uint8 count prefix.
func ChunkIdentifiers(ids []uuid.UUID) [][]uuid.UUID {
	if len(ids) == 0 {
		return nil
	}

	chunks := make([][]uuid.UUID, 0, (len(ids)+MaxListSize-1)/MaxListSize)
	for len(ids) > MaxListSize {
		chunks = append(chunks, ids[:MaxListSize:MaxListSize])
		ids = ids[MaxListSize:]
	}

	return append(chunks, ids)
}

var _ Message = (*SubscribeRequest)(nil)
var _ Message = (*AckRequest)(nil)
