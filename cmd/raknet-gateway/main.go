package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"raknet-gateway/internal/events"
	"raknet-gateway/internal/gateway"
	"raknet-gateway/internal/metrics"
	"raknet-gateway/internal/offline"
	"raknet-gateway/internal/rnglog"
	"raknet-gateway/internal/session"
)

// stubAcceptor is a placeholder session.Acceptor: it logs every completed
// handshake and raw datagram instead of handing them to a real connected-
// session layer. A future child-session implementation replaces this.
type stubAcceptor struct {
	log *zap.Logger
}

func (s *stubAcceptor) Accept(h session.Handoff) bool {
	s.log.Info("stub session accepted",
		zap.Stringer("remote", h.Remote),
		zap.Uint64("client_guid", h.ClientGUID),
		zap.Uint8("protocol_version", h.ProtocolVersion),
		zap.Uint16("mtu", h.MTU),
	)
	return true
}

func (s *stubAcceptor) HandleRaw(m session.RakMessage) {
	s.log.Debug("stub session dropped raw datagram",
		zap.Stringer("remote", m.Remote),
		zap.Int("len", len(m.Payload)),
	)
}

const version = "0.1.0"

// config is loaded entirely from the environment, in the spirit of a
// small gateway process with no on-disk config file.
type config struct {
	listenAddr  string
	metricsAddr string
	development bool
	logLevel    string
	trustProxy  bool

	guid          uint64
	advertisement string
	minMTU        uint16
	maxMTU        uint16
	sendCookie    bool
	handlePing    bool
	protocols     []byte
}

func loadConfig() config {
	cfg := config{
		listenAddr:    getEnv("RAKNET_LISTEN_ADDR", "0.0.0.0:19132"),
		metricsAddr:   getEnv("RAKNET_METRICS_ADDR", "0.0.0.0:9100"),
		development:   getEnvBool("RAKNET_LOG_DEV", true),
		logLevel:      getEnv("RAKNET_LOG_LEVEL", "info"),
		trustProxy:    getEnvBool("RAKNET_TRUST_PROXY", false),
		guid:          getEnvUint64("RAKNET_GUID", 0x0102030405060708),
		advertisement: getEnv("RAKNET_ADVERTISEMENT", "MCPE;Gateway;589;1.20.0;0;20;13579;Gateway;Survival;1;19132;19133;"),
		minMTU:        uint16(getEnvUint64("RAKNET_MIN_MTU", 400)),
		maxMTU:        uint16(getEnvUint64("RAKNET_MAX_MTU", 1492)),
		sendCookie:    getEnvBool("RAKNET_SEND_COOKIE", true),
		handlePing:    getEnvBool("RAKNET_HANDLE_PING_EXTERNALLY", false),
		protocols:     parseProtocols(getEnv("RAKNET_SUPPORTED_PROTOCOLS", "11")),
	}
	return cfg
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvUint64(key string, def uint64) uint64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func parseProtocols(csv string) []byte {
	parts := strings.Split(csv, ",")
	out := make([]byte, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(n))
	}
	return out
}

func main() {
	cfg := loadConfig()

	log, err := rnglog.New(cfg.development, cfg.logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rnglog: "+err.Error())
		os.Exit(1)
	}
	defer log.Sync()

	rnglog.Banner(log, "raknet-gateway", version, cfg.listenAddr)

	identity := offline.ServerIdentity{
		GUID:                 cfg.guid,
		Magic:                offline.DefaultMagic,
		Advertisement:        []byte(cfg.advertisement),
		SupportedProtocols:   cfg.protocols,
		MinMTU:               cfg.minMTU,
		MaxMTU:               cfg.maxMTU,
		SendCookie:           cfg.sendCookie,
		HandlePingExternally: cfg.handlePing,
	}

	bus := events.NewBus()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	m.Subscribe(bus)

	bus.Subscribe(events.TypeOCR1Rejected, func(e events.Event) {
		log.Warn("incompatible protocol version", zap.Stringer("remote", e.Remote))
	})
	bus.Subscribe(events.TypeOCR2CookieMismatch, func(e events.Event) {
		log.Warn("cookie mismatch", zap.Stringer("remote", e.Remote))
	})
	bus.Subscribe(events.TypeOCR2AlreadyConnected, func(e events.Event) {
		log.Warn("already connected", zap.Stringer("remote", e.Remote))
	})
	bus.Subscribe(events.TypeHandshakeCompleted, func(e events.Event) {
		log.Info("handshake completed", zap.Stringer("remote", e.Remote))
	})

	srv, err := gateway.New(gateway.Config{
		ListenAddr: cfg.listenAddr,
		Identity:   identity,
		TrustProxy: cfg.trustProxy,
	}, &stubAcceptor{log: log}, bus, m, log)
	if err != nil {
		log.Fatal("gateway init failed", zap.Error(err))
	}

	go serveMetrics(cfg.metricsAddr, registry, log)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal("gateway error", zap.Error(err))
	case sig := <-sigCh:
		log.Info("received signal, shutting down", zap.Stringer("signal", sig))
		srv.Stop()
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Info("serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics server stopped", zap.Error(err))
	}
}
