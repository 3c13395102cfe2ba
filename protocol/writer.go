package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Writer builds a single frame. Every write grows the buffer by exactly the
// number of bytes it appends, so a finished frame is never padded.
//
// A Writer is write-once, there is no way to reset it.
type Writer struct {
	buf    []byte
	cursor int
}

func NewWriter() *Writer {
	return &Writer{buf: []byte{}}
}

// NewFrameWriter returns a Writer that has already written the frame header.
func NewFrameWriter(protocolID ProtocolID, messageType MessageType) (*Writer, error) {
	w := NewWriter()
	if err := w.WriteHeader(protocolID, messageType); err != nil {
		return nil, err
	}

	return w, nil
}

// WriteHeader appends the header byte for the given protocol id and message type.
// Both must fit into four bits.
func (w *Writer) WriteHeader(protocolID ProtocolID, messageType MessageType) error {
	if protocolID > maxNibble || messageType > maxNibble {
		return fmt.Errorf("header %d/%d does not fit in a nibble: %w",
			protocolID, messageType, ErrEncoding)
	}

	w.WriteUint8(Header{Protocol: protocolID, Type: messageType}.Byte())
	return nil
}

func (w *Writer) WriteUint8(n uint8) {
	w.grow(1)
	w.buf[w.cursor] = n
	w.cursor++
}

// WriteIdentifier appends the 16 bytes of id verbatim.
func (w *Writer) WriteIdentifier(id uuid.UUID) {
	w.grow(IdentifierSize)
	w.write(id[:])
}

// WriteBlob appends a 2 byte big endian length followed by data. Blobs larger
// than MaxBlobSize are rejected before anything is written.
func (w *Writer) WriteBlob(data []byte) error {
	if len(data) > MaxBlobSize {
		return fmt.Errorf("blob of %d bytes exceeds %d: %w",
			len(data), MaxBlobSize, ErrEncoding)
	}

	w.grow(2 + len(data))
	binary.BigEndian.PutUint16(w.buf[w.cursor:], uint16(len(data)))
	w.cursor += 2
	w.write(data)

	return nil
}

// WriteString appends s as a UTF-8 blob.
func (w *Writer) WriteString(s string) error {
	return w.WriteBlob([]byte(s))
}

// WriteIdentifiers appends a uint8 count followed by each identifier.
func (w *Writer) WriteIdentifiers(ids []uuid.UUID) error {
	if len(ids) > MaxListSize {
		return fmt.Errorf("list of %d identifiers exceeds %d: %w",
			len(ids), MaxListSize, ErrEncoding)
	}

	w.WriteUint8(uint8(len(ids)))
	for _, id := range ids {
		w.WriteIdentifier(id)
	}

	return nil
}

// Bytes returns the finished frame.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}

// grow must be followed by writes that fill exactly size bytes.
func (w *Writer) grow(size int) {
	buf := make([]byte, len(w.buf)+size)
	copy(buf, w.buf)
	w.buf = buf
}

func (w *Writer) write(data []byte) {
	copy(w.buf[w.cursor:], data)
	w.cursor += len(data)
}
