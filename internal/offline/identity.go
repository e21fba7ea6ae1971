// Package offline implements the RakNet offline handshake: the classifier
// that recognizes unconnected traffic, the pending-connection table, and
// the OCR1/OCR2 state machine that negotiates MTU and hands off to a
// child session once the handshake completes.
package offline

import "fmt"

// DefaultMagic is the standard RakNet offline-message identifier used by
// every implementation that hasn't customized it. Servers that want to
// shard traffic from unrelated RakNet deployments on the same port can
// override ServerIdentity.Magic instead.
var DefaultMagic = [16]byte{
	0x00, 0xff, 0xff, 0x00, 0xfe, 0xfe, 0xfe, 0xfe,
	0xfd, 0xfd, 0xfd, 0xfd, 0x12, 0x34, 0x56, 0x78,
}

// ServerIdentity is immutable for the server's lifetime.
type ServerIdentity struct {
	GUID                 uint64
	Magic                [16]byte
	Advertisement        []byte
	SupportedProtocols   []byte // sorted ascending; nil means accept all
	MinMTU               uint16
	MaxMTU               uint16
	SendCookie           bool
	HandlePingExternally bool
}

// Validate enforces the startup-time configuration invariants: bad
// settings fail at startup, never at datagram time.
func (id ServerIdentity) Validate() error {
	if id.MinMTU == 0 || id.MaxMTU == 0 {
		return fmt.Errorf("offline: min/max MTU must be non-zero")
	}
	if id.MinMTU > id.MaxMTU {
		return fmt.Errorf("offline: min MTU %d exceeds max MTU %d", id.MinMTU, id.MaxMTU)
	}
	for i := 1; i < len(id.SupportedProtocols); i++ {
		if id.SupportedProtocols[i] <= id.SupportedProtocols[i-1] {
			return fmt.Errorf("offline: supported protocols must be a sorted set")
		}
	}
	return nil
}

// highestSupported returns the highest protocol version this server
// accepts, used in INCOMPATIBLE_PROTOCOL_VERSION replies.
func (id ServerIdentity) highestSupported() byte {
	if len(id.SupportedProtocols) == 0 {
		return 0
	}
	return id.SupportedProtocols[len(id.SupportedProtocols)-1]
}

func (id ServerIdentity) supports(version byte) bool {
	if len(id.SupportedProtocols) == 0 {
		return true
	}
	for _, v := range id.SupportedProtocols {
		if v == version {
			return true
		}
	}
	return false
}

func clampMTU(candidate, min, max uint16) uint16 {
	if candidate < min {
		return min
	}
	if candidate > max {
		return max
	}
	return candidate
}
