package offline

import (
	"crypto/rand"
	"encoding/binary"
	"net/netip"

	"raknet-gateway/internal/events"
	"raknet-gateway/internal/session"
	"raknet-gateway/internal/wire"
)

// Coordinator is the OCR1/OCR2 state machine: it owns the server's
// identity, the pending-connection table, and produces the reply
// datagrams for every offline opcode. A Coordinator is safe for
// concurrent use; all mutable state lives in its PendingTable.
type Coordinator struct {
	Identity ServerIdentity
	Acceptor session.Acceptor // may be nil; Accept is then skipped
	Bus      *events.Bus      // may be nil; publishing is then skipped

	pending *PendingTable
}

// NewCoordinator validates id and returns a ready Coordinator with its own
// pending-connection table. Callers must Close it on shutdown. acceptor
// and bus may both be nil if the caller only wants reply bytes.
func NewCoordinator(id ServerIdentity, acceptor session.Acceptor, bus *events.Bus) (*Coordinator, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return &Coordinator{Identity: id, Acceptor: acceptor, Bus: bus, pending: NewPendingTable()}, nil
}

func (c *Coordinator) publish(t events.Type, remote netip.AddrPort, data interface{}) {
	if c.Bus != nil {
		c.Bus.Publish(events.Event{Type: t, Remote: remote, Data: data})
	}
}

// Close releases the Coordinator's background resources.
func (c *Coordinator) Close() {
	c.pending.Close()
}

// PendingCount reports the current size of the pending-connection table,
// for metrics sampling.
func (c *Coordinator) PendingCount() int {
	return c.pending.Len()
}

// Handle dispatches datagram from remote to the matching offline handler.
// It returns the reply bytes to send back (nil if the packet is silently
// dropped) and reports whether the datagram was recognized as offline at
// all; a false "handled" means the caller should pass the datagram on to
// the session layer instead.
func (c *Coordinator) Handle(datagram []byte, remote netip.AddrPort) (reply []byte, handled bool) {
	op, ok := Classify(datagram, c.Identity.Magic)
	if !ok {
		return nil, false
	}
	switch op {
	case OpUnconnectedPing:
		return c.handlePing(datagram, remote), true
	case OpOpenConnectionRequest1:
		return c.handleOCR1(datagram, remote), true
	case OpOpenConnectionRequest2:
		return c.handleOCR2(datagram, remote), true
	default:
		return nil, false
	}
}

func (c *Coordinator) handlePing(datagram []byte, remote netip.AddrPort) []byte {
	if c.Identity.HandlePingExternally {
		return nil
	}
	r := wire.NewReader(datagram)
	_ = r.Skip(1) // opcode
	pingTime, err := r.Uint64()
	if err != nil {
		return nil
	}
	if err := r.Skip(16); err != nil { // magic, already verified by Classify
		return nil
	}
	// clientGUID follows but is unused by the reply.
	c.publish(events.TypePingReceived, remote, nil)

	w := wire.NewWriter(1 + 8 + 8 + 16 + 2 + len(c.Identity.Advertisement))
	w.Byte(byte(OpUnconnectedPong))
	w.Uint64(pingTime)
	w.Uint64(c.Identity.GUID)
	w.Raw(c.Identity.Magic[:])
	w.Uint16(uint16(len(c.Identity.Advertisement)))
	w.Raw(c.Identity.Advertisement)
	return w.Bytes()
}

func (c *Coordinator) handleOCR1(datagram []byte, remote netip.AddrPort) []byte {
	r := wire.NewReader(datagram)
	_ = r.Skip(1 + 16) // opcode, magic (already verified)
	protoVersion, err := r.Byte()
	if err != nil {
		return nil
	}
	// mtu_candidate is the datagram as it arrived over the wire, including
	// the IP and UDP headers the client's own MTU probe had to account
	// for — not just the RakNet body captured in datagram.
	ipHeader := uint16(20)
	if !remote.Addr().Is4() && !remote.Addr().Is4In6() {
		ipHeader = 40
	}
	clientMTU := uint16(len(datagram)) + ipHeader + 8

	if !c.Identity.supports(protoVersion) {
		c.publish(events.TypeOCR1Rejected, remote, protoVersion)
		return c.incompatibleVersionReply()
	}

	mtu := clampMTU(clientMTU, c.Identity.MinMTU, c.Identity.MaxMTU)

	entry := &PendingConnection{
		ProtocolVersion: protoVersion,
		ClientMTU:       mtu,
	}
	if c.Identity.SendCookie {
		cookie, err := randomCookie()
		if err != nil {
			return nil
		}
		entry.Cookie = cookie
		entry.HasCookie = true
	}
	c.pending.Put(remote, entry)
	c.publish(events.TypeOCR1Accepted, remote, mtu)

	w := wire.NewWriter(1 + 16 + 8 + 1 + 2)
	w.Byte(byte(OpOpenConnectionReply1))
	w.Raw(c.Identity.Magic[:])
	w.Uint64(c.Identity.GUID)
	if entry.HasCookie {
		w.Byte(1)
		w.Uint32(entry.Cookie)
	} else {
		w.Byte(0)
	}
	w.Uint16(mtu)
	return w.Bytes()
}

func (c *Coordinator) handleOCR2(datagram []byte, remote netip.AddrPort) []byte {
	pending, ok := c.pending.Get(remote)
	if !ok {
		// No matching OCR1: silently drop — a client
		// replaying OCR2 without a live pending entry gets no reply.
		c.publish(events.TypeOCR2NoPending, remote, nil)
		return nil
	}

	r := wire.NewReader(datagram)
	_ = r.Skip(1 + 16) // opcode, magic

	if pending.HasCookie {
		gotCookie, err := r.Uint32()
		if err != nil || gotCookie != pending.Cookie {
			// Spoofed or stale cookie: drop silently, never reveal which
			// half of the check failed.
			c.publish(events.TypeOCR2CookieMismatch, remote, nil)
			return nil
		}
		if _, err := r.Byte(); err != nil { // challenge flag, unused
			return nil
		}
	}

	if _, err := wire.ReadAddress(r); err != nil { // bound server address, unused
		return nil
	}
	clientMTU, err := r.Uint16()
	if err != nil {
		return nil
	}
	clientGUID, err := r.Uint64()
	if err != nil {
		return nil
	}

	if clientMTU < c.Identity.MinMTU || clientMTU > c.Identity.MaxMTU {
		c.pending.Delete(remote)
		c.publish(events.TypeOCR2AlreadyConnected, remote, nil)
		return c.AlreadyConnectedReply()
	}

	mtu := clampMTU(clientMTU, c.Identity.MinMTU, c.Identity.MaxMTU)
	if mtu > pending.ClientMTU {
		mtu = pending.ClientMTU
	}

	c.pending.Delete(remote)

	if c.Acceptor != nil {
		accepted := c.Acceptor.Accept(session.Handoff{
			Remote:          remote,
			ClientGUID:      clientGUID,
			ProtocolVersion: pending.ProtocolVersion,
			MTU:             mtu,
		})
		if !accepted {
			c.publish(events.TypeOCR2AlreadyConnected, remote, nil)
			return c.AlreadyConnectedReply()
		}
	}

	c.publish(events.TypeOCR2Accepted, remote, mtu)
	c.publish(events.TypeHandshakeCompleted, remote, clientGUID)

	w := wire.NewWriter(1 + 16 + 8 + 32 + 2 + 1)
	w.Byte(byte(OpOpenConnectionReply2))
	w.Raw(c.Identity.Magic[:])
	w.Uint64(c.Identity.GUID)
	wire.WriteAddress(w, remote)
	w.Uint16(mtu)
	w.Byte(0) // no encryption
	return w.Bytes()
}

func (c *Coordinator) incompatibleVersionReply() []byte {
	w := wire.NewWriter(1 + 1 + 16 + 8)
	w.Byte(byte(OpIncompatibleProtoVersion))
	w.Byte(c.Identity.highestSupported())
	w.Raw(c.Identity.Magic[:])
	w.Uint64(c.Identity.GUID)
	return w.Bytes()
}

// AlreadyConnectedReply is sent when an OCR2 is rejected for an
// out-of-range MTU or because the Acceptor reports a session already
// exists for the remote address. Exported so a session layer that learns
// of a duplicate connection through some other path can send the same
// reply directly.
func (c *Coordinator) AlreadyConnectedReply() []byte {
	w := wire.NewWriter(1 + 16 + 8)
	w.Byte(byte(OpAlreadyConnected))
	w.Raw(c.Identity.Magic[:])
	w.Uint64(c.Identity.GUID)
	return w.Bytes()
}

func randomCookie() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
