package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "courage"

// Metrics counts what the connection manager and the subscription engine do.
type Metrics struct {
	ConnectAttempts prometheus.Counter
	ConnectionsOpen prometheus.Counter
	ConnectionsLost prometheus.Counter
	State           prometheus.Gauge

	FramesSent     *prometheus.CounterVec
	FramesReceived *prometheus.CounterVec
	FramesDropped  *prometheus.CounterVec

	EventsDelivered prometheus.Counter
	EventsUnbound   prometheus.Counter
	EventsAcked     prometheus.Counter

	BoundChannels prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with registry. A nil
// registry leaves them unregistered.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		ConnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connect_attempts_total",
			Help:      "Total number of attempts to open a connection to the service",
		}),

		ConnectionsOpen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_opened_total",
			Help:      "Total number of connections successfully opened",
		}),

		ConnectionsLost: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_lost_total",
			Help:      "Total number of failed or closed connections",
		}),

		State: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connection_state",
			Help:      "Current connection state (0 idle, 1 connecting, 2 open, 3 closed)",
		}),

		FramesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_sent_total",
			Help:      "Total number of frames sent by message type",
		}, []string{"type"}),

		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_received_total",
			Help:      "Total number of frames received by message type",
		}, []string{"type"}),

		FramesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of received frames that were discarded",
		}, []string{"reason"}),

		EventsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_delivered_total",
			Help:      "Total number of events handed to a bound handler",
		}),

		EventsUnbound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_unbound_total",
			Help:      "Total number of events for channels with no handler",
		}),

		EventsAcked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_acked_total",
			Help:      "Total number of event ids sent in ack frames",
		}),

		BoundChannels: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "bound_channels",
			Help:      "Number of channels with a bound handler",
		}),
	}
}
