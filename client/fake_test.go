package client_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/luma/courage/protocol"
	"github.com/luma/courage/transport"
)

var errDialRefused = errors.New("connection refused")

// fakeDialer hands out in-memory connections. While refuse is set every dial fails.
type fakeDialer struct {
	mu     sync.Mutex
	refuse bool
	dials  []time.Time
	conns  []*fakeConn
}

func (f *fakeDialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.dials = append(f.dials, time.Now())

	if f.refuse {
		return nil, errDialRefused
	}

	conn := newFakeConn()
	f.conns = append(f.conns, conn)

	return conn, nil
}

func (f *fakeDialer) SetRefuse(refuse bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refuse = refuse
}

func (f *fakeDialer) Dials() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dials)
}

func (f *fakeDialer) DialTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.dials...)
}

// Conn returns the most recent connection, or nil.
func (f *fakeDialer) Conn() *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.conns) == 0 {
		return nil
	}

	return f.conns[len(f.conns)-1]
}

type fakeConn struct {
	inbound chan []byte

	mu      sync.Mutex
	written [][]byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-f.inbound:
		return data, nil
	case <-f.closed:
		return nil, io.EOF
	}
}

func (f *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-f.closed:
		return transport.ErrConnClosed
	default:
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, data)

	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

// Push delivers data to the reader as if the service sent it.
func (f *fakeConn) Push(data []byte) {
	f.inbound <- data
}

func (f *fakeConn) PushMessage(msg protocol.Marshaler) {
	data, err := msg.Marshal()
	if err != nil {
		panic(err)
	}

	f.Push(data)
}

func (f *fakeConn) Written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.written...)
}

func (f *fakeConn) SubscribeRequests() []*protocol.SubscribeRequest {
	var reqs []*protocol.SubscribeRequest
	for _, data := range f.Written() {
		if msg, err := protocol.ReadMessage(data); err == nil {
			if req, ok := msg.(*protocol.SubscribeRequest); ok {
				reqs = append(reqs, req)
			}
		}
	}

	return reqs
}

func (f *fakeConn) Acks() []*protocol.AckRequest {
	var acks []*protocol.AckRequest
	for _, data := range f.Written() {
		if msg, err := protocol.ReadMessage(data); err == nil {
			if ack, ok := msg.(*protocol.AckRequest); ok {
				acks = append(acks, ack)
			}
		}
	}

	return acks
}

var _ transport.Dialer = (*fakeDialer)(nil)
var _ transport.Conn = (*fakeConn)(nil)
