// Package metrics wires the gateway's events.Bus to Prometheus
// instruments registered against a caller-supplied prometheus.Registerer,
// never the global default registry, so multiple gateways can coexist in
// one process (e.g. in tests) without colliding.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"raknet-gateway/internal/events"
)

// Metrics holds the gateway's Prometheus instruments.
type Metrics struct {
	pingsReceived      prometheus.Counter
	ocr1Accepted       prometheus.Counter
	ocr1Rejected       prometheus.Counter
	ocr2Accepted       prometheus.Counter
	ocr2CookieMismatch prometheus.Counter
	ocr2NoPending      prometheus.Counter
	ocr2AlreadyConn    prometheus.Counter
	handshakesComplete prometheus.Counter
	proxyDecoded       *prometheus.CounterVec
	proxyRejected      *prometheus.CounterVec
	pendingTableSize   prometheus.Gauge
	negotiatedMTU      *prometheus.HistogramVec
}

// New constructs and registers every instrument against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pingsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raknet_unconnected_pings_total",
			Help: "Unconnected pings received.",
		}),
		ocr1Accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raknet_ocr1_accepted_total",
			Help: "OPEN_CONNECTION_REQUEST_1 accepted and answered.",
		}),
		ocr1Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raknet_ocr1_rejected_total",
			Help: "OPEN_CONNECTION_REQUEST_1 rejected for protocol-version mismatch.",
		}),
		ocr2Accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raknet_ocr2_accepted_total",
			Help: "OPEN_CONNECTION_REQUEST_2 that completed a handshake.",
		}),
		ocr2CookieMismatch: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raknet_ocr2_cookie_mismatch_total",
			Help: "OPEN_CONNECTION_REQUEST_2 dropped for a bad anti-spoofing cookie.",
		}),
		ocr2NoPending: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raknet_ocr2_no_pending_total",
			Help: "OPEN_CONNECTION_REQUEST_2 dropped for having no matching pending entry.",
		}),
		ocr2AlreadyConn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raknet_ocr2_already_connected_total",
			Help: "OPEN_CONNECTION_REQUEST_2 answered with ALREADY_CONNECTED (bad MTU or duplicate session).",
		}),
		handshakesComplete: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raknet_handshakes_completed_total",
			Help: "Handshakes handed off to the session layer.",
		}),
		proxyDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proxyproto_headers_decoded_total",
			Help: "PROXY protocol headers decoded, by version.",
		}, []string{"version"}),
		proxyRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proxyproto_headers_rejected_total",
			Help: "PROXY protocol headers rejected, by error kind.",
		}, []string{"kind"}),
		pendingTableSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raknet_pending_table_size",
			Help: "Current number of in-flight (OCR1-without-OCR2) handshakes.",
		}),
		negotiatedMTU: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "raknet_negotiated_mtu_bytes",
			Help:    "MTU negotiated during the offline handshake, by step.",
			Buckets: []float64{400, 548, 576, 1200, 1400, 1492},
		}, []string{"step"}),
	}

	reg.MustRegister(
		m.pingsReceived, m.ocr1Accepted, m.ocr1Rejected,
		m.ocr2Accepted, m.ocr2CookieMismatch, m.ocr2NoPending,
		m.ocr2AlreadyConn, m.handshakesComplete, m.proxyDecoded,
		m.proxyRejected, m.pendingTableSize, m.negotiatedMTU,
	)
	return m
}

// Subscribe wires every counter to its matching event type on bus.
func (m *Metrics) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.TypePingReceived, func(events.Event) { m.pingsReceived.Inc() })
	bus.Subscribe(events.TypeOCR1Accepted, func(e events.Event) {
		m.ocr1Accepted.Inc()
		if mtu, ok := e.Data.(uint16); ok {
			m.negotiatedMTU.WithLabelValues("ocr1").Observe(float64(mtu))
		}
	})
	bus.Subscribe(events.TypeOCR1Rejected, func(events.Event) { m.ocr1Rejected.Inc() })
	bus.Subscribe(events.TypeOCR2Accepted, func(e events.Event) {
		m.ocr2Accepted.Inc()
		if mtu, ok := e.Data.(uint16); ok {
			m.negotiatedMTU.WithLabelValues("ocr2").Observe(float64(mtu))
		}
	})
	bus.Subscribe(events.TypeOCR2CookieMismatch, func(events.Event) { m.ocr2CookieMismatch.Inc() })
	bus.Subscribe(events.TypeOCR2NoPending, func(events.Event) { m.ocr2NoPending.Inc() })
	bus.Subscribe(events.TypeOCR2AlreadyConnected, func(events.Event) { m.ocr2AlreadyConn.Inc() })
	bus.Subscribe(events.TypeHandshakeCompleted, func(events.Event) { m.handshakesComplete.Inc() })

	bus.Subscribe(events.TypeProxyHeaderDecoded, func(e events.Event) {
		version, _ := e.Data.(string)
		m.proxyDecoded.WithLabelValues(version).Inc()
	})
	bus.Subscribe(events.TypeProxyHeaderRejected, func(e events.Event) {
		kind, _ := e.Data.(string)
		m.proxyRejected.WithLabelValues(kind).Inc()
	})
}

// SetPendingTableSize reports the current size of the pending-connection
// table. Called on a tick rather than wired to the event bus, since it's
// a gauge sampled from live state rather than an edge-triggered count.
func (m *Metrics) SetPendingTableSize(n int) {
	m.pendingTableSize.Set(float64(n))
}
