package proxyproto

import "errors"

// HAProxyMessage is the decoded result of a PROXY header.
// ProxiedProtocol == ProtoUnknown implies every address/port field below
// is zero; ports are non-zero for TCPx/UDPx and zero otherwise.
type HAProxyMessage struct {
	Version         Version
	Command         Command
	ProxiedProtocol ProxiedProtocol

	SourceAddress string
	DestAddress   string
	SourcePort    uint16
	DestPort      uint16
}

// unknownMessage is the placeholder returned for LOCAL commands and
// UNKNOWN/UNSPEC families: no address information is meaningful.
func unknownMessage(v Version, cmd Command) HAProxyMessage {
	return HAProxyMessage{Version: v, Command: cmd, ProxiedProtocol: ProtoUnknown}
}

var errNoSignature = errors.New("no recognizable PROXY signature")

// Decode detects and parses a V1 or V2 header from the start of data.
// It does not require the full 12-byte v2 signature to be checked beyond
// its first byte before dispatching (verifying the full
// signature is optional); the v2 path itself still validates all 12
// signature bytes before trusting the rest of the header.
func Decode(data []byte) (HAProxyMessage, int, error) {
	if len(data) == 0 {
		return HAProxyMessage{}, 0, decodeErr(IncompleteHeader, nil, errNoSignature)
	}
	switch data[0] {
	case sigV1[0]:
		return decodeV1(data)
	case sigV2[0]:
		return decodeV2(data)
	default:
		return HAProxyMessage{}, 0, decodeErr(IncompleteHeader, data[:min(len(data), 16)], errNoSignature)
	}
}
