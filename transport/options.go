package transport

import (
	"time"

	"go.uber.org/zap"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultPingInterval     = 30 * time.Second
	DefaultReadBufferSize   = 4096
	DefaultWriteBufferSize  = 4096
)

type Options struct {
	// HandshakeTimeout bounds the websocket opening handshake
	HandshakeTimeout time.Duration

	// WriteTimeout bounds every frame write, including pings
	WriteTimeout time.Duration

	// PingInterval is how often a ping is sent. A connection that has not
	// answered within PingInterval+WriteTimeout is treated as lost. Zero
	// disables keepalive.
	PingInterval time.Duration

	ReadBufferSize  int
	WriteBufferSize int

	// Trace will log every frame in hex. This is only useful in local debugging
	Trace bool

	Log *zap.Logger
}

// DefaultOptions returns Options with keepalive enabled.
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: DefaultHandshakeTimeout,
		WriteTimeout:     DefaultWriteTimeout,
		PingInterval:     DefaultPingInterval,
		ReadBufferSize:   DefaultReadBufferSize,
		WriteBufferSize:  DefaultWriteBufferSize,
	}
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}

	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}

	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = DefaultReadBufferSize
	}

	if o.WriteBufferSize <= 0 {
		o.WriteBufferSize = DefaultWriteBufferSize
	}

	if o.Log == nil {
		o.Log = zap.NewNop()
	}

	return o
}
