// Package gateway wires the PROXY decoder, the offline handshake
// coordinator, the event bus, and a UDP listener into the running
// process, mirroring the listen/dispatch shape of a classic UDP game
// server loop.
package gateway

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/zap"

	"raknet-gateway/internal/events"
	"raknet-gateway/internal/metrics"
	"raknet-gateway/internal/offline"
	"raknet-gateway/internal/proxyproto"
	"raknet-gateway/internal/session"
)

// Config holds everything needed to start a Server.
type Config struct {
	ListenAddr    string
	Identity      offline.ServerIdentity
	TrustProxy    bool // when true, datagrams are peeled for a PROXY header first
	BufferSize    int
	MetricsTickFn time.Duration // how often the pending-table gauge is sampled
}

// Server owns the UDP socket and the handshake coordinator. It is the
// gateway equivalent of the teacher's game server: one read loop, one
// goroutine per datagram, a ticker for periodic bookkeeping.
type Server struct {
	cfg         Config
	conn        *net.UDPConn
	coordinator *offline.Coordinator
	acceptor    session.Acceptor
	bus         *events.Bus
	metrics     *metrics.Metrics
	log         *zap.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// New constructs a Server. acceptor receives completed handshakes and raw
// (non-offline) datagrams; it may be nil during early bring-up.
func New(cfg Config, acceptor session.Acceptor, bus *events.Bus, m *metrics.Metrics, log *zap.Logger) (*Server, error) {
	coordinator, err := offline.NewCoordinator(cfg.Identity, acceptor, bus)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 2048
	}
	if cfg.MetricsTickFn == 0 {
		cfg.MetricsTickFn = 5 * time.Second
	}
	return &Server{
		cfg:         cfg,
		coordinator: coordinator,
		acceptor:    acceptor,
		bus:         bus,
		metrics:     m,
		log:         log,
		stop:        make(chan struct{}),
	}, nil
}

// Start binds the UDP socket and blocks, serving datagrams until Stop is
// called. It returns the bind error, if any; once serving, it returns nil
// only after a clean Stop.
func (s *Server) Start() error {
	addr, err := net.ResolveUDPAddr("udp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("gateway: resolve listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("gateway: bind UDP socket: %w", err)
	}
	s.conn = conn

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.log.Info("listening", zap.String("addr", s.cfg.ListenAddr))

	go s.metricsTickLoop()
	return s.listen()
}

// Stop closes the UDP socket and stops background tickers. Safe to call
// once after Start; idempotent calls are not supported, matching the
// teacher's single-shutdown server lifecycle.
func (s *Server) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	close(s.stop)
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.coordinator.Close()
}

func (s *Server) listen() error {
	buf := make([]byte, s.cfg.BufferSize)
	for {
		n, raddr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if !running {
				return nil
			}
			s.log.Warn("read error", zap.Error(err))
			continue
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		remote := raddr.AddrPort()

		go s.handleDatagram(datagram, remote)
	}
}

func (s *Server) handleDatagram(datagram []byte, remote netip.AddrPort) {
	if s.cfg.TrustProxy {
		if msg, consumed, err := proxyproto.Decode(datagram); err == nil {
			s.bus.Publish(events.Event{Type: events.TypeProxyHeaderDecoded, Remote: remote, Data: versionLabel(msg.Version)})
			if real, ok := realAddrPort(msg); ok {
				remote = real
			}
			datagram = datagram[consumed:]
		} else {
			kind := err.Error()
			var de *proxyproto.DecodeError
			if errors.As(err, &de) {
				kind = de.Kind.String()
			}
			s.bus.Publish(events.Event{Type: events.TypeProxyHeaderRejected, Remote: remote, Data: kind})
			return
		}
	}

	reply, handled := s.coordinator.Handle(datagram, remote)
	if !handled {
		if s.acceptor != nil {
			s.acceptor.HandleRaw(session.RakMessage{Remote: remote, Payload: datagram})
		}
		return
	}
	if reply == nil {
		return
	}
	if _, err := s.conn.WriteToUDPAddrPort(reply, remote); err != nil {
		s.log.Warn("write error", zap.Stringer("remote", remote), zap.Error(err))
	}
}

func (s *Server) metricsTickLoop() {
	ticker := time.NewTicker(s.cfg.MetricsTickFn)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if s.metrics != nil {
				s.metrics.SetPendingTableSize(s.coordinator.PendingCount())
			}
		case <-s.stop:
			return
		}
	}
}

func versionLabel(v proxyproto.Version) string {
	switch v {
	case proxyproto.V1:
		return "v1"
	case proxyproto.V2:
		return "v2"
	default:
		return "unknown"
	}
}

func realAddrPort(msg proxyproto.HAProxyMessage) (netip.AddrPort, bool) {
	if msg.SourceAddress == "" || msg.SourcePort == 0 {
		return netip.AddrPort{}, false
	}
	addr, err := netip.ParseAddr(msg.SourceAddress)
	if err != nil {
		return netip.AddrPort{}, false
	}
	return netip.AddrPortFrom(addr, msg.SourcePort), true
}
