package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"raknet-gateway/internal/events"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestMetricsSubscribeCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	bus := events.NewBus()
	m.Subscribe(bus)

	bus.Publish(events.Event{Type: events.TypePingReceived})
	bus.Publish(events.Event{Type: events.TypeOCR1Accepted})
	bus.Publish(events.Event{Type: events.TypeOCR1Accepted})

	require.Equal(t, float64(1), counterValue(t, m.pingsReceived))
	require.Equal(t, float64(2), counterValue(t, m.ocr1Accepted))
}

func TestMetricsProxyVecLabelsByVersion(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	bus := events.NewBus()
	m.Subscribe(bus)

	bus.Publish(events.Event{Type: events.TypeProxyHeaderDecoded, Data: "v1"})
	bus.Publish(events.Event{Type: events.TypeProxyHeaderDecoded, Data: "v2"})
	bus.Publish(events.Event{Type: events.TypeProxyHeaderDecoded, Data: "v2"})

	require.Equal(t, float64(1), counterValue(t, m.proxyDecoded.WithLabelValues("v1")))
	require.Equal(t, float64(2), counterValue(t, m.proxyDecoded.WithLabelValues("v2")))
}

func TestSetPendingTableSize(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetPendingTableSize(7)

	var dtoMetric dto.Metric
	require.NoError(t, m.pendingTableSize.Write(&dtoMetric))
	require.Equal(t, float64(7), dtoMetric.GetGauge().GetValue())
}
