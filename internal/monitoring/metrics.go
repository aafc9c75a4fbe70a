package monitoring

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every Prometheus collector pusherd exposes on
// /metrics: counters for cumulative totals, gauges for current state,
// CounterVec where a reason/label distinguishes otherwise-identical
// events.
type Metrics struct {
	ConnectionsTotal      prometheus.Counter
	ConnectionsActive     prometheus.Gauge
	ConnectionsRejected   *prometheus.CounterVec // label: reason
	Disconnects           *prometheus.CounterVec // label: reason
	ChannelsActive        prometheus.Gauge
	PresenceChannelsActive prometheus.Gauge
	MessagesReceived      prometheus.Counter
	MessagesSent          prometheus.Counter
	MessagesDropped       *prometheus.CounterVec // label: reason
	RateLimited           prometheus.Counter
	AuthFailures          prometheus.Counter
}

// NewMetrics constructs and registers every collector against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pusherd_connections_total",
			Help: "Total WebSocket connections established.",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pusherd_connections_active",
			Help: "Current number of active WebSocket connections.",
		}),
		ConnectionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pusherd_connections_rejected_total",
			Help: "Connections rejected at admission, by reason.",
		}, []string{"reason"}),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pusherd_disconnects_total",
			Help: "Connection teardowns, by reason.",
		}, []string{"reason"}),
		ChannelsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pusherd_channels_active",
			Help: "Current number of channels with at least one subscriber.",
		}),
		PresenceChannelsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pusherd_presence_channels_active",
			Help: "Current number of presence channels with at least one member.",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pusherd_messages_received_total",
			Help: "Total client frames received.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pusherd_messages_sent_total",
			Help: "Total frames written to clients.",
		}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pusherd_messages_dropped_total",
			Help: "Outbound messages dropped, by reason.",
		}, []string{"reason"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pusherd_rate_limited_total",
			Help: "Client messages rejected for exceeding the rate limit.",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pusherd_auth_failures_total",
			Help: "Subscribe attempts rejected for invalid auth tokens.",
		}),
	}

	reg.MustRegister(
		m.ConnectionsTotal,
		m.ConnectionsActive,
		m.ConnectionsRejected,
		m.Disconnects,
		m.ChannelsActive,
		m.PresenceChannelsActive,
		m.MessagesReceived,
		m.MessagesSent,
		m.MessagesDropped,
		m.RateLimited,
		m.AuthFailures,
	)
	return m
}
