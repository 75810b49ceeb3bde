// Package metrics exposes Prometheus collectors for the ambient observability
// surface supplementing the spec: gateway connection health, feed poll
// outcomes, and command throughput.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the bot registers. Held as a struct
// (not package-level globals) so tests can construct an isolated registry.
type Metrics struct {
	GatewayConnects    prometheus.Counter
	GatewayReconnects  prometheus.Counter
	HeartbeatsMissed   prometheus.Counter
	FeedPolls          *prometheus.CounterVec
	FeedPollDuration   prometheus.Histogram
	PostsPushed        prometheus.Counter
	CommandsHandled    *prometheus.CounterVec
	SubscribedFeeds    prometheus.Gauge
}

// New creates and registers every collector against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GatewayConnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ksbot_gateway_connects_total",
			Help: "Total successful gateway WebSocket connections.",
		}),
		GatewayReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ksbot_gateway_reconnects_total",
			Help: "Total times the session machine returned to gateway lookup after a disconnect.",
		}),
		HeartbeatsMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ksbot_gateway_heartbeats_missed_total",
			Help: "Total individual missed heartbeats (not timeouts).",
		}),
		FeedPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ksbot_feed_polls_total",
			Help: "Total feed poll attempts, labeled by outcome.",
		}, []string{"outcome"}),
		FeedPollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ksbot_feed_poll_duration_seconds",
			Help:    "Duration of a single feed pull.",
			Buckets: prometheus.DefBuckets,
		}),
		PostsPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ksbot_posts_pushed_total",
			Help: "Total posts delivered to channels.",
		}),
		CommandsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ksbot_commands_handled_total",
			Help: "Total commands handled, labeled by verb.",
		}, []string{"verb"}),
		SubscribedFeeds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ksbot_subscribed_feeds",
			Help: "Current number of distinct subscribed feeds.",
		}),
	}

	reg.MustRegister(
		m.GatewayConnects,
		m.GatewayReconnects,
		m.HeartbeatsMissed,
		m.FeedPolls,
		m.FeedPollDuration,
		m.PostsPushed,
		m.CommandsHandled,
		m.SubscribedFeeds,
	)

	return m
}

// The Inc*/Observe* helpers are nil-receiver safe so callers can hold a
// *Metrics that is nil when metrics are disabled, instead of branching at
// every call site.

func (m *Metrics) incFeedPoll(outcome string) {
	if m == nil {
		return
	}
	m.FeedPolls.WithLabelValues(outcome).Inc()
}

// ObserveFeedPoll records one feed poll's outcome and duration.
func (m *Metrics) ObserveFeedPoll(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.incFeedPoll(outcome)
	m.FeedPollDuration.Observe(seconds)
}

func (m *Metrics) IncPostsPushed() {
	if m == nil {
		return
	}
	m.PostsPushed.Inc()
}

func (m *Metrics) IncCommand(verb string) {
	if m == nil {
		return
	}
	m.CommandsHandled.WithLabelValues(verb).Inc()
}

func (m *Metrics) SetSubscribedFeeds(n float64) {
	if m == nil {
		return
	}
	m.SubscribedFeeds.Set(n)
}

func (m *Metrics) IncGatewayConnect() {
	if m == nil {
		return
	}
	m.GatewayConnects.Inc()
}

func (m *Metrics) IncGatewayReconnect() {
	if m == nil {
		return
	}
	m.GatewayReconnects.Inc()
}

func (m *Metrics) IncHeartbeatMissed() {
	if m == nil {
		return
	}
	m.HeartbeatsMissed.Inc()
}
