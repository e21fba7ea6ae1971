package gateway

import (
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"raknet-gateway/internal/events"
	"raknet-gateway/internal/offline"
	"raknet-gateway/internal/session"
	"raknet-gateway/internal/wire"
)

func zapNop() *zap.Logger { return zap.NewNop() }

type recordingAcceptor struct {
	raw []session.RakMessage
}

func (r *recordingAcceptor) Accept(session.Handoff) bool    { return true }
func (r *recordingAcceptor) HandleRaw(m session.RakMessage) { r.raw = append(r.raw, m) }

func testIdentity() offline.ServerIdentity {
	return offline.ServerIdentity{
		GUID:               1,
		Magic:              offline.DefaultMagic,
		SupportedProtocols: []byte{11},
		MinMTU:             400,
		MaxMTU:             1492,
	}
}

func TestHandleDatagramUnhandledCallsAcceptorHandleRaw(t *testing.T) {
	acc := &recordingAcceptor{}
	srv, err := New(Config{Identity: testIdentity()}, acc, events.NewBus(), nil, zapNop())
	require.NoError(t, err)
	defer srv.coordinator.Close()

	srv.handleDatagram([]byte{0xFE, 0x01, 0x02}, netip.MustParseAddrPort("203.0.113.1:1"))

	require.Len(t, acc.raw, 1)
	require.Equal(t, []byte{0xFE, 0x01, 0x02}, acc.raw[0].Payload)
}

func TestHandleDatagramProxyRejectedDropsSilently(t *testing.T) {
	acc := &recordingAcceptor{}
	bus := events.NewBus()
	var rejected bool
	bus.Subscribe(events.TypeProxyHeaderRejected, func(events.Event) { rejected = true })

	srv, err := New(Config{Identity: testIdentity(), TrustProxy: true}, acc, bus, nil, zapNop())
	require.NoError(t, err)
	defer srv.coordinator.Close()

	srv.handleDatagram([]byte("GARBAGE NOT A HEADER\r\n"), netip.MustParseAddrPort("203.0.113.2:1"))

	require.True(t, rejected)
	require.Empty(t, acc.raw, "a rejected PROXY header must not fall through to the acceptor")
}

func TestServerEndToEndPingOverUDP(t *testing.T) {
	srv, err := New(Config{ListenAddr: "127.0.0.1:0", Identity: testIdentity()}, nil, events.NewBus(), nil, zapNop())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	ready := make(chan struct{})
	go func() {
		addr, bindErr := net.ResolveUDPAddr("udp", srv.cfg.ListenAddr)
		if bindErr != nil {
			errCh <- bindErr
			return
		}
		conn, bindErr := net.ListenUDP("udp", addr)
		if bindErr != nil {
			errCh <- bindErr
			return
		}
		srv.conn = conn
		srv.running = true
		close(ready)
		errCh <- srv.listen()
	}()
	<-ready
	defer srv.Stop()

	clientConn, err := net.DialUDP("udp", nil, srv.conn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer clientConn.Close()

	ping := make([]byte, 1+8+16+8)
	ping[0] = byte(offline.OpUnconnectedPing)
	copy(ping[9:25], offline.DefaultMagic[:])

	_, err = clientConn.Write(ping)
	require.NoError(t, err)

	buf := make([]byte, 2048)
	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := clientConn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, byte(offline.OpUnconnectedPong), buf[0])

	r := wire.NewReader(buf[:n])
	_ = r.Skip(1 + 8)
	guid, _ := r.Uint64()
	require.Equal(t, uint64(1), guid)
}
