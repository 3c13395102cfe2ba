package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/courage/protocol"
	"github.com/luma/courage/storage"
	"github.com/luma/courage/transport"
)

var (
	ErrInvalidChannelID = errors.New("Channel id is not a valid identifier")
	ErrClosed           = errors.New("Client is closed")
)

// Handler receives the payload of every event published to a bound channel.
// The payload is only valid for the duration of the call.
type Handler func(payload []byte)

type BindOptions struct {
	// Replay asks the service to deliver stored events when subscribing
	Replay bool
}

type Options struct {
	// URL of the service, e.g. ws://rt.thenewtricks.com:9090/
	URL string

	ProviderID   uuid.UUID
	PublicToken  string
	PrivateToken string
	DeviceID     uuid.UUID

	// Dialer overrides the websocket dialer built from Transport
	Dialer    transport.Dialer
	Transport transport.Options

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Registry receives the client's metrics. Nil leaves them unregistered.
	Registry prometheus.Registerer

	Log *zap.Logger
}

type binding struct {
	channelID uuid.UUID
	handler   Handler
	replay    bool
}

// Client subscribes to channels of the streaming event service and routes
// their events to handlers.
//
// All channels that have been bound are subscribed again every time the
// connection is re-established.
type Client struct {
	providerID   uuid.UUID
	publicToken  string
	privateToken string
	deviceID     uuid.UUID

	manager *Manager

	mu        sync.Mutex
	bindings  map[string]*binding
	connected bool
	started   bool
	closed    bool

	metrics *Metrics
	log     *zap.Logger
}

func New(options Options) (*Client, error) {
	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	// Credentials must each fit in a blob
	probe := &protocol.SubscribeRequest{
		PublicToken:  options.PublicToken,
		PrivateToken: options.PrivateToken,
	}
	if _, err := probe.Marshal(); err != nil {
		return nil, fmt.Errorf("Invalid credentials: %w", err)
	}

	dialer := options.Dialer
	if dialer == nil {
		transportOpts := options.Transport
		if transportOpts.Log == nil {
			transportOpts.Log = log.Named("transport")
		}

		dialer = transport.NewWebSocket(transportOpts)
	}

	metrics := NewMetrics(options.Registry)

	c := &Client{
		providerID:   options.ProviderID,
		publicToken:  options.PublicToken,
		privateToken: options.PrivateToken,
		deviceID:     options.DeviceID,
		bindings:     make(map[string]*binding),
		metrics:      metrics,
		log:          log.Named("client"),
	}

	c.manager = NewManager(ManagerOptions{
		URL:            options.URL,
		Dialer:         dialer,
		InitialBackoff: options.InitialBackoff,
		MaxBackoff:     options.MaxBackoff,
		Metrics:        metrics,
		Log:            log.Named("manager"),
	})

	return c, nil
}

// NewFromDSN configures a Client from a DSN and the device id kept in store.
func NewFromDSN(ctx context.Context, dsn string, secure bool, store storage.Store, options Options) (*Client, error) {
	parsed, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	deviceID, err := DeviceID(ctx, store, options.Log)
	if err != nil {
		return nil, err
	}

	options.URL = parsed.URL(secure)
	options.ProviderID = parsed.ProviderID
	options.PublicToken = parsed.PublicToken
	options.PrivateToken = parsed.PrivateToken
	options.DeviceID = deviceID

	return New(options)
}

// Bind routes every event published to channelID to handler. Binding the same
// channel again replaces its handler and options. Channel ids are case
// insensitive.
//
// The first Bind starts the connection. If the connection is open the channel is
// subscribed right away, otherwise it is subscribed together with every other
// bound channel as soon as a connection opens.
func (c *Client) Bind(channelID string, handler Handler, options BindOptions) error {
	id, err := uuid.Parse(channelID)
	if err != nil {
		return fmt.Errorf("Failed to bind '%s': %w", channelID, ErrInvalidChannelID)
	}

	if handler == nil {
		handler = func([]byte) {}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.bindings[channelKey(id)] = &binding{
		channelID: id,
		handler:   handler,
		replay:    options.Replay,
	}
	c.metrics.BoundChannels.Set(float64(len(c.bindings)))

	if !c.started {
		c.started = true

		c.manager.OnOpen(c.onOpen)
		c.manager.OnMessage(c.onMessage)
		c.manager.OnClose(c.onClose)
		c.manager.OnError(c.onError)
		c.manager.Start()
	}

	if c.connected {
		if err := c.subscribe([]uuid.UUID{id}, options.Replay); err != nil {
			// The channel is picked up again by the next open
			c.log.Warn("Failed to subscribe",
				zap.Stringer("channelId", id),
				zap.Error(err))
		}
	}

	return nil
}

// Channels returns the ids of every bound channel.
func (c *Client) Channels() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(c.bindings))
	for _, b := range c.sortedBindings() {
		ids = append(ids, b.channelID)
	}

	return ids
}

// State reports the state of the underlying connection.
func (c *Client) State() State {
	return c.manager.State()
}

// Close disconnects and stops reconnecting. Bind fails after Close.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	c.closed = true
	c.mu.Unlock()

	return c.manager.Close()
}

// onOpen subscribes every bound channel in as few frames as possible.
func (c *Client) onOpen() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = true

	var replay, plain []uuid.UUID
	for _, b := range c.sortedBindings() {
		if b.replay {
			replay = append(replay, b.channelID)
		} else {
			plain = append(plain, b.channelID)
		}
	}

	c.log.Info("Subscribing bound channels",
		zap.Int("channels", len(replay)+len(plain)))

	err := multierr.Combine(
		c.subscribe(plain, false),
		c.subscribe(replay, true),
	)

	if err != nil {
		c.log.Warn("Failed to subscribe bound channels", zap.Error(err))
	}
}

func (c *Client) onClose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
}

func (c *Client) onError(err error) {
	c.log.Debug("Transport error", zap.Error(err))
}

func (c *Client) onMessage(data []byte) {
	msg, err := protocol.ReadMessage(data)

	switch {
	case errors.Is(err, protocol.ErrUnknownMessage):
		c.metrics.FramesDropped.WithLabelValues("unknown").Inc()
		c.log.Debug("Ignoring unknown frame", zap.Error(err))
		return

	case err != nil:
		c.metrics.FramesDropped.WithLabelValues("malformed").Inc()
		c.log.Warn("Dropping malformed frame", zap.Int("size", len(data)), zap.Error(err))
		return
	}

	c.metrics.FramesReceived.WithLabelValues(msg.Type().String()).Inc()

	switch m := msg.(type) {
	case *protocol.SubscribeSuccess:
		var acks []uuid.UUID

		for _, event := range m.Events() {
			if c.deliver(event) {
				acks = append(acks, event.EventID)
			}
		}

		c.ack(acks)

	case *protocol.EventData:
		if c.deliver(m.Event) {
			c.ack([]uuid.UUID{m.EventID})
		}

	default:
		c.metrics.FramesDropped.WithLabelValues("unexpected").Inc()
		c.log.Debug("Ignoring unexpected frame", zap.Stringer("type", msg.Type()))
	}
}

// deliver hands event to the handler bound to its channel. It returns false if
// no handler is bound, in which case the event must not be acknowledged.
func (c *Client) deliver(event protocol.Event) bool {
	c.mu.Lock()
	b, ok := c.bindings[channelKey(event.ChannelID)]
	c.mu.Unlock()

	if !ok {
		c.metrics.EventsUnbound.Inc()
		c.log.Debug("Dropping event for unbound channel",
			zap.Stringer("channelId", event.ChannelID),
			zap.Stringer("eventId", event.EventID))
		return false
	}

	b.handler(event.Payload)
	c.metrics.EventsDelivered.Inc()

	return true
}

func (c *Client) ack(eventIDs []uuid.UUID) {
	for _, chunk := range protocol.ChunkIdentifiers(eventIDs) {
		if err := c.send(&protocol.AckRequest{EventIDs: chunk}); err != nil {
			// The service redelivers whatever it did not see acknowledged
			c.log.Warn("Failed to ack events", zap.Int("events", len(chunk)), zap.Error(err))
			return
		}

		c.metrics.EventsAcked.Add(float64(len(chunk)))
	}
}

// subscribe must be called with c.mu held.
func (c *Client) subscribe(channelIDs []uuid.UUID, replay bool) (err error) {
	var options uint8
	if replay {
		options |= protocol.OptionReplay
	}

	for _, chunk := range protocol.ChunkIdentifiers(channelIDs) {
		err = multierr.Append(err, c.send(&protocol.SubscribeRequest{
			ProviderID:   c.providerID,
			PublicToken:  c.publicToken,
			PrivateToken: c.privateToken,
			DeviceID:     c.deviceID,
			ChannelIDs:   chunk,
			Options:      options,
		}))
	}

	return err
}

func (c *Client) send(msg protocol.Message) error {
	data, err := msg.Marshal()
	if err != nil {
		return err
	}

	if err := c.manager.Send(data); err != nil {
		return err
	}

	c.metrics.FramesSent.WithLabelValues(msg.Type().String()).Inc()
	return nil
}

// sortedBindings must be called with c.mu held.
func (c *Client) sortedBindings() []*binding {
	keys := make([]string, 0, len(c.bindings))
	for key := range c.bindings {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	bindings := make([]*binding, 0, len(keys))
	for _, key := range keys {
		bindings = append(bindings, c.bindings[key])
	}

	return bindings
}

// channelKey is the lowercase canonical text form of id.
func channelKey(id uuid.UUID) string {
	return strings.ToLower(id.String())
}

// Metrics returns the client's metrics.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}
