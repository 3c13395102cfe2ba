package transport

import (
	"context"
	"errors"
)

var (
	ErrConnClosed = errors.New("Connection is closed")
)

// Conn is a single duplex, message oriented connection to the service.
//
// ReadMessage must only be called from one goroutine. WriteMessage and Close
// are safe to call concurrently with ReadMessage and with each other.
type Conn interface {
	// ReadMessage blocks until the next binary message arrives. Any error
	// means the connection is gone.
	ReadMessage() ([]byte, error)

	WriteMessage(data []byte) error

	Close() error
}

// Dialer opens connections to the service.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}
