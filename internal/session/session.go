// Package session defines the handoff boundary between the offline
// handshake and whatever owns a connection once OPEN_CONNECTION_REPLY_2
// has been sent. This package deliberately stops at the boundary: framing,
// reliability, and ordering for connected traffic are out of scope.
package session

import "net/netip"

// RakMessage is the shape handed to the connected-session layer for every
// datagram the offline layer declined to handle (Classify rejected it).
// The offline layer does no further interpretation of these bytes.
type RakMessage struct {
	Remote  netip.AddrPort
	Payload []byte
}

// Handoff describes a freshly completed handshake, passed to whatever
// accepts new sessions once OCR2 succeeds.
type Handoff struct {
	Remote          netip.AddrPort
	ClientGUID      uint64
	ProtocolVersion byte
	MTU             uint16
}

// Acceptor is implemented by whatever owns connected sessions. HandleRaw
// receives datagrams the offline layer did not classify as handshake
// traffic; Accept receives a completed handshake and reports whether it
// was admitted. A false return means a session already exists for
// h.Remote — the offline layer replies ALREADY_CONNECTED instead of
// OPEN_CONNECTION_REPLY_2.
type Acceptor interface {
	Accept(h Handoff) bool
	HandleRaw(m RakMessage)
}
