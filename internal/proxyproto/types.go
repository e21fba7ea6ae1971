// Package proxyproto decodes a PROXY protocol header (v1 text or v2 binary)
// prepended by a front-tier load balancer to the first datagram of a
// connection, recovering the true client address.
//
// Unlike github.com/mastercactapus/proxyprotocol, which wraps a streaming
// net.Conn, this package decodes a single already-received buffer: the
// caller peels the header off one UDP datagram, it does not read from an
// open connection.
package proxyproto

// Version identifies which PROXY protocol revision produced a header.
type Version int

const (
	V1 Version = 1
	V2 Version = 2
)

// Command is the PROXY v2 command nibble. V1 has no equivalent on the
// wire; Decode always reports CommandProxy for v1 non-UNKNOWN headers.
type Command byte

const (
	CommandLocal Command = 0x0
	CommandProxy Command = 0x1
)

// ProxiedProtocol is the address family x transport pairing carried by a
// header, collapsed into the single sum type this decoder uses.
type ProxiedProtocol int

const (
	ProtoUnspec ProxiedProtocol = iota
	ProtoUnknown
	ProtoTCP4
	ProtoTCP6
	ProtoUDP4
	ProtoUDP6
	ProtoUnixStream
	ProtoUnixDgram
)

func (p ProxiedProtocol) String() string {
	switch p {
	case ProtoUnspec:
		return "UNSPEC"
	case ProtoUnknown:
		return "UNKNOWN"
	case ProtoTCP4:
		return "TCP4"
	case ProtoTCP6:
		return "TCP6"
	case ProtoUDP4:
		return "UDP4"
	case ProtoUDP6:
		return "UDP6"
	case ProtoUnixStream:
		return "UNIX_STREAM"
	case ProtoUnixDgram:
		return "UNIX_DGRAM"
	default:
		return "INVALID"
	}
}

// v2 wire nibbles, per the HAProxy PROXY protocol v1.8 specification.
type v2AddrFamily byte

const (
	v2AFUnspec v2AddrFamily = 0x0
	v2AFInet   v2AddrFamily = 0x1
	v2AFInet6  v2AddrFamily = 0x2
	v2AFUnix   v2AddrFamily = 0x3
)

type v2Transport byte

const (
	v2TransUnspec v2Transport = 0x0
	v2TransStream v2Transport = 0x1
	v2TransDgram  v2Transport = 0x2
)
