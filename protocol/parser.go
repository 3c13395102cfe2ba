package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrEncoding         = errors.New("Field exceeds the limits of the wire format")
	ErrTruncatedMessage = errors.New("Message is malformed, it ended before all of its fields were read")
	ErrUnknownMessage   = errors.New("Message has an unknown protocol or message type")
)

// Reader decodes the fields of a single frame. Values returned by ReadBlob are
// slices of the original buffer, so the buffer must outlive them.
type Reader struct {
	buf    []byte
	cursor int
}

func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

// ReadHeader reads the protocol id and message type from the next byte.
func (r *Reader) ReadHeader() (Header, error) {
	b, err := r.ReadUint8()
	if err != nil {
		return Header{}, err
	}

	return Header{
		Protocol: ProtocolID(b >> 4),
		Type:     MessageType(b & maxNibble),
	}, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

// ReadIdentifier reads the next 16 bytes as an identifier.
func (r *Reader) ReadIdentifier() (id uuid.UUID, err error) {
	b, err := r.next(IdentifierSize)
	if err != nil {
		return id, err
	}

	copy(id[:], b)
	return id, nil
}

// ReadBlob reads a 2 byte big endian length and then that many bytes.
func (r *Reader) ReadBlob() ([]byte, error) {
	size, err := r.next(2)
	if err != nil {
		return nil, err
	}

	return r.next(int(binary.BigEndian.Uint16(size)))
}

func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBlob()
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// ReadIdentifiers reads a uint8 count followed by that many identifiers.
func (r *Reader) ReadIdentifiers() ([]uuid.UUID, error) {
	count, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < int(count); i++ {
		id, err := r.ReadIdentifier()
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.cursor
}

func (r *Reader) next(size int) ([]byte, error) {
	if size > r.Remaining() {
		return nil, fmt.Errorf("wanted %d bytes at offset %d of %d: %w",
			size, r.cursor, len(r.buf), ErrTruncatedMessage)
	}

	b := r.buf[r.cursor : r.cursor+size : r.cursor+size]
	r.cursor += size

	return b, nil
}
