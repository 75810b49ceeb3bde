package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncGatewayConnect()
	m.IncGatewayReconnect()
	m.IncHeartbeatMissed()
	m.ObserveFeedPoll("ok", 0.25)
	m.IncPostsPushed()
	m.IncCommand("rss")
	m.SetSubscribedFeeds(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) != 8 {
		t.Fatalf("Gather returned %d families, want 8", len(families))
	}
}

func TestNilMetricsHelpersDoNotPanic(t *testing.T) {
	var m *Metrics

	m.IncGatewayConnect()
	m.IncGatewayReconnect()
	m.IncHeartbeatMissed()
	m.ObserveFeedPoll("ok", 0.1)
	m.IncPostsPushed()
	m.IncCommand("sub")
	m.SetSubscribedFeeds(1)
}

func TestSubscribedFeedsGaugeValue(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetSubscribedFeeds(7)

	var metric dto.Metric
	if err := m.SubscribedFeeds.Write(&metric); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if metric.GetGauge().GetValue() != 7 {
		t.Fatalf("gauge = %v, want 7", metric.GetGauge().GetValue())
	}
}
