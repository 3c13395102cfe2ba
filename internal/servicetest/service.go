// Package servicetest runs an in-process streaming service for tests.
//
// It accepts websocket connections, records every frame clients send and can
// push frames to, or drop, every connected client.
package servicetest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/courage/protocol"
)

type Options struct {
	// Host to listen on, defaults to 127.0.0.1
	Host string

	// Port to listen on, zero picks a free port
	Port int

	Log *zap.Logger
}

type Service struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	addr     string
	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader

	mu          sync.Mutex
	activeConns map[*Conn]struct{}
	accepted    int
	received    []protocol.Message
	raw         [][]byte

	log *zap.Logger
}

func New(options Options) *Service {
	host := options.Host
	if host == "" {
		host = "127.0.0.1"
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		addr:        net.JoinHostPort(host, fmt.Sprint(options.Port)),
		activeConns: make(map[*Conn]struct{}),
		log:         log,
	}
}

func (s *Service) Start(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	s.cancel = cancel

	listener, err := reuseport.Listen("tcp", s.addr)
	if err != nil {
		cancel()
		return err
	}

	s.listener = listener
	s.server = &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.accept(ctx, w, r)
		}),
	}

	s.stopWaiter.Add(1)
	go func() {
		defer s.stopWaiter.Done()

		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Failed to serve", zap.Error(err))
		}
	}()

	s.log.Info("Listening", zap.String("addr", listener.Addr().String()))

	return nil
}

// URL is the websocket URL clients should dial.
func (s *Service) URL() string {
	return "ws://" + s.listener.Addr().String() + "/"
}

// Close drops every client and stops listening.
func (s *Service) Close() error {
	s.cancel()

	err := s.DropAll()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = multierr.Append(err, s.server.Shutdown(ctx))
	s.stopWaiter.Wait()

	return err
}

// Send marshals msg and writes it to every connected client.
func (s *Service) Send(msg protocol.Marshaler) error {
	data, err := msg.Marshal()
	if err != nil {
		return err
	}

	return s.SendRaw(data)
}

// SendRaw writes data verbatim to every connected client.
func (s *Service) SendRaw(data []byte) (err error) {
	for _, conn := range s.conns() {
		err = multierr.Append(err, conn.Write(data))
	}

	return err
}

// DropAll closes every client connection without a close handshake.
func (s *Service) DropAll() (err error) {
	for _, conn := range s.conns() {
		err = multierr.Append(err, conn.Close())
	}

	return err
}

// Accepted is the number of connections accepted since Start.
func (s *Service) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.accepted
}

// Active is the number of connections currently open.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.activeConns)
}

// Received returns every decoded frame received so far, in arrival order.
func (s *Service) Received() []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]protocol.Message(nil), s.received...)
}

// RawFrames returns every frame received so far, including ones that did not decode.
func (s *Service) RawFrames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([][]byte(nil), s.raw...)
}

func (s *Service) SubscribeRequests() []*protocol.SubscribeRequest {
	var reqs []*protocol.SubscribeRequest
	for _, msg := range s.Received() {
		if req, ok := msg.(*protocol.SubscribeRequest); ok {
			reqs = append(reqs, req)
		}
	}

	return reqs
}

func (s *Service) Acks() []*protocol.AckRequest {
	var acks []*protocol.AckRequest
	for _, msg := range s.Received() {
		if ack, ok := msg.(*protocol.AckRequest); ok {
			acks = append(acks, ack)
		}
	}

	return acks
}

// Reset forgets every frame received so far.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.received = nil
	s.raw = nil
}

func (s *Service) accept(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Failed to upgrade", zap.Error(err))
		return
	}

	conn := &Conn{ws: ws}

	s.mu.Lock()
	s.activeConns[conn] = struct{}{}
	s.accepted++
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	s.readLoop(conn)
}

func (s *Service) readLoop(conn *Conn) {
	log := s.log.Named("readLoop")

	defer func() {
		conn.Close()

		s.mu.Lock()
		delete(s.activeConns, conn)
		s.mu.Unlock()
	}()

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			log.Debug("Client went away", zap.Error(err))
			return
		}

		msg, err := protocol.ReadMessage(data)

		s.mu.Lock()
		s.raw = append(s.raw, data)
		if err == nil {
			s.received = append(s.received, msg)
		}
		s.mu.Unlock()

		if err != nil {
			log.Warn("Failed to read client frame", zap.Error(err))
		}
	}
}

func (s *Service) conns() []*Conn {
	s.mu.Lock()
	defer s.mu.Unlock()

	conns := make([]*Conn, 0, len(s.activeConns))
	for conn := range s.activeConns {
		conns = append(conns, conn)
	}

	return conns
}

// Conn is one accepted client connection.
type Conn struct {
	mu        sync.Mutex
	ws        *websocket.Conn
	closeOnce sync.Once
}

func (c *Conn) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ws.WriteMessage(websocket.BinaryMessage, data)
}

func (c *Conn) Close() (err error) {
	c.closeOnce.Do(func() {
		err = c.ws.Close()
	})

	return err
}
