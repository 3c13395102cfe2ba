package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luma/courage/transport"
)

var (
	ErrNotConnected = errors.New("Not connected to the service")
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type ManagerOptions struct {
	// URL of the service, e.g. ws://rt.thenewtricks.com:9090/
	URL string

	Dialer transport.Dialer

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	Metrics *Metrics
	Log     *zap.Logger
}

// Manager keeps one connection to the service open. When the connection fails
// or closes it reconnects after an exponentially increasing delay, forever.
//
// Notifications are delivered from a single goroutine, in the order the
// transport produced them. They must not call Close.
type Manager struct {
	url    string
	dialer transport.Dialer

	// backoff is only touched by the run loop
	backoff *Backoff

	mu      sync.Mutex
	state   State
	conn    transport.Conn
	started bool

	onOpen    func()
	onMessage func(data []byte)
	onClose   func()
	onError   func(err error)

	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	metrics *Metrics
	log     *zap.Logger
}

func NewManager(options ManagerOptions) *Manager {
	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	metrics := options.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	dialer := options.Dialer
	if dialer == nil {
		dialer = transport.NewWebSocket(transport.DefaultOptions())
	}

	return &Manager{
		url:       options.URL,
		dialer:    dialer,
		backoff:   NewBackoff(options.InitialBackoff, options.MaxBackoff),
		state:     StateIdle,
		onOpen:    func() {},
		onMessage: func([]byte) {},
		onClose:   func() {},
		onError:   func(error) {},
		metrics:   metrics,
		log:       log,
	}
}

// OnOpen sets the function called every time a connection opens.
func (m *Manager) OnOpen(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOpen = fn
}

// OnMessage sets the function called with every binary message received.
func (m *Manager) OnMessage(fn func(data []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMessage = fn
}

// OnClose sets the function called every time the manager enters StateClosed.
func (m *Manager) OnClose(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClose = fn
}

// OnError sets the function called with transport errors.
func (m *Manager) OnError(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// Start begins connecting. Start may be called multiple times, the manager will
// only be started once.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}

	m.started = true

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.stopWaiter.Add(1)
	go func() {
		defer m.stopWaiter.Done()
		m.run(ctx)
	}()
}

// Send writes data to the open connection. It returns ErrNotConnected unless
// the manager is in StateOpen; nothing is buffered across reconnects.
func (m *Manager) Send(data []byte) error {
	m.mu.Lock()
	conn := m.conn
	state := m.state
	m.mu.Unlock()

	if state != StateOpen || conn == nil {
		return fmt.Errorf("Failed to send in state %s: %w", state, ErrNotConnected)
	}

	if err := conn.WriteMessage(data); err != nil {
		return fmt.Errorf("Failed to send: %w", err)
	}

	return nil
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected returns true while the manager is in StateOpen.
func (m *Manager) Connected() bool {
	return m.State() == StateOpen
}

// Close stops reconnecting and closes the current connection. It blocks until
// the run loop has exited.
func (m *Manager) Close() error {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	m.stopWaiter.Wait()
	m.setState(StateClosed)

	return nil
}

func (m *Manager) run(ctx context.Context) {
	log := m.log.Named("run")

	for {
		m.setState(StateConnecting)
		m.metrics.ConnectAttempts.Inc()

		conn, err := m.dialer.Dial(ctx, m.url)
		if ctx.Err() != nil {
			if conn != nil {
				conn.Close()
			}

			log.Info("Manager closed, exiting...")
			return
		}

		if err != nil {
			log.Warn("Failed to connect", zap.String("url", m.url), zap.Error(err))
			m.handlers().onError(err)
		} else {
			m.serve(ctx, conn)

			if ctx.Err() != nil {
				log.Info("Manager closed, exiting...")
				return
			}
		}

		m.setState(StateClosed)
		m.metrics.ConnectionsLost.Inc()
		m.handlers().onClose()

		delay := m.backoff.Next()
		log.Info("Reconnecting",
			zap.Duration("delay", delay),
			zap.Int("failures", m.backoff.Failures()))

		timer := time.NewTimer(delay)

		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("Manager closed, exiting...")
			return

		case <-timer.C:
		}
	}
}

// serve delivers notifications for one open connection until it fails.
func (m *Manager) serve(ctx context.Context, conn transport.Conn) {
	log := m.log.Named("serve")

	m.mu.Lock()
	m.conn = conn
	m.state = StateOpen
	m.mu.Unlock()

	m.metrics.State.Set(float64(StateOpen))
	m.metrics.ConnectionsOpen.Inc()
	m.backoff.Reset()

	log.Info("Connected", zap.String("url", m.url))
	m.handlers().onOpen()

	done := make(chan struct{})

	defer func() {
		close(done)

		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()

		conn.Close()
	}()

	// Unblock ReadMessage when the manager is closed
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Info("Connection lost", zap.Error(err))
				m.handlers().onError(err)
			}

			return
		}

		m.handlers().onMessage(data)
	}
}

type handlers struct {
	onOpen    func()
	onMessage func(data []byte)
	onClose   func()
	onError   func(err error)
}

func (m *Manager) handlers() handlers {
	m.mu.Lock()
	defer m.mu.Unlock()

	return handlers{
		onOpen:    m.onOpen,
		onMessage: m.onMessage,
		onClose:   m.onClose,
		onError:   m.onError,
	}
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()

	m.metrics.State.Set(float64(state))
}
