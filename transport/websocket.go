package transport

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket dials binary websocket connections.
type WebSocket struct {
	dialer *websocket.Dialer
	opts   Options
	log    *zap.Logger
}

func NewWebSocket(options Options) *WebSocket {
	opts := options.withDefaults()

	return &WebSocket{
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.HandshakeTimeout,
			ReadBufferSize:   opts.ReadBufferSize,
			WriteBufferSize:  opts.WriteBufferSize,
		},
		opts: opts,
		log:  opts.Log,
	}
}

func (w *WebSocket) Dial(ctx context.Context, url string) (Conn, error) {
	// The handshake response body does not need to be closed by us,
	// see websocket.Dialer.DialContext.
	conn, _, err := w.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("Failed to dial %s: %w", url, err)
	}

	c := &wsConn{
		conn: conn,
		done: make(chan struct{}),
		opts: w.opts,
		log:  w.log.With(zap.String("remote", conn.RemoteAddr().String())),
	}

	c.startKeepalive()

	return c, nil
}

type wsConn struct {
	conn *websocket.Conn

	// gorilla/websocket allows a single concurrent writer
	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}

	opts Options
	log  *zap.Logger
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}

		c.extendReadDeadline()

		if messageType != websocket.BinaryMessage {
			c.log.Debug("Ignoring non-binary message", zap.Int("messageType", messageType))
			continue
		}

		if c.opts.Trace {
			c.log.Debug("READ", zap.String("frame", hex.EncodeToString(data)))
		}

		return data, nil
	}
}

func (c *wsConn) WriteMessage(data []byte) error {
	if !c.isRunning() {
		return ErrConnClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.opts.Trace {
		c.log.Debug("WRITE", zap.String("frame", hex.EncodeToString(data)))
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}

	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *wsConn) Close() (err error) {
	c.closeOnce.Do(func() {
		close(c.done)

		// Best effort, the peer may already be gone
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteTimeout))

		err = c.conn.Close()
	})

	return err
}

func (c *wsConn) startKeepalive() {
	if c.opts.PingInterval <= 0 {
		return
	}

	c.extendReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	go func() {
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-c.done:
				return

			case <-ticker.C:
				deadline := time.Now().Add(c.opts.WriteTimeout)
				if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					// The read deadline will expire and the reader will see the failure
					c.log.Warn("Failed to send ping", zap.Error(err))
					return
				}
			}
		}
	}()
}

func (c *wsConn) extendReadDeadline() {
	if c.opts.PingInterval <= 0 {
		return
	}

	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PingInterval + c.opts.WriteTimeout))
}

// isRunning returns true if Close has not been called
func (c *wsConn) isRunning() bool {
	select {
	case <-c.done:
		return false

	default:
		return true
	}
}

var _ Dialer = (*WebSocket)(nil)
var _ Conn = (*wsConn)(nil)
