package proxyproto

import (
	"bytes"
	"net/netip"
	"strconv"
	"strings"
)

var sigV1 = []byte("PROXY")

// decodeV1 parses a PROXY v1 (human-readable) header from the start of
// data, returning the number of bytes consumed (through the trailing
// CRLF) so the caller can hand the remainder to the offline classifier.
func decodeV1(data []byte) (HAProxyMessage, int, error) {
	idx := bytes.Index(data, []byte("\r\n"))
	if idx < 0 || idx > 107 {
		return HAProxyMessage{}, 0, decodeErr(IncompleteHeader, data, nil)
	}
	consumed := idx + 2
	line := string(data[:idx])

	parts := strings.Split(line, " ")
	if len(parts) < 2 || parts[0] != "PROXY" {
		return HAProxyMessage{}, 0, decodeErr(MalformedV1, data[:consumed], nil)
	}

	switch parts[1] {
	case "UNKNOWN":
		// Matches PROXY v1 semantics: trailing fields after UNKNOWN are
		// accepted silently, not rejected as garbage.
		return unknownMessage(V1, CommandProxy), consumed, nil
	case "TCP4", "TCP6":
		// fall through to the full 6-field parse below
	default:
		return HAProxyMessage{}, 0, decodeErr(MalformedV1, data[:consumed], nil)
	}

	if len(parts) != 6 {
		return HAProxyMessage{}, 0, decodeErr(MalformedV1, data[:consumed], nil)
	}

	srcIPStr, dstIPStr, srcPortStr, dstPortStr := parts[2], parts[3], parts[4], parts[5]

	srcIP, err := netip.ParseAddr(srcIPStr)
	if err != nil {
		return HAProxyMessage{}, 0, decodeErr(InvalidAddress, data[:consumed], err)
	}
	dstIP, err := netip.ParseAddr(dstIPStr)
	if err != nil {
		return HAProxyMessage{}, 0, decodeErr(InvalidAddress, data[:consumed], err)
	}

	wantV6 := parts[1] == "TCP6"
	if srcIP.Is4In6() || dstIP.Is4In6() {
		return HAProxyMessage{}, 0, decodeErr(InvalidAddress, data[:consumed], nil)
	}
	if wantV6 && (!srcIP.Is6() || !dstIP.Is6()) {
		return HAProxyMessage{}, 0, decodeErr(InvalidAddress, data[:consumed], nil)
	}
	if !wantV6 && (!srcIP.Is4() || !dstIP.Is4()) {
		return HAProxyMessage{}, 0, decodeErr(InvalidAddress, data[:consumed], nil)
	}

	srcPort, err := parseV1Port(srcPortStr)
	if err != nil {
		return HAProxyMessage{}, 0, decodeErr(InvalidPort, data[:consumed], err)
	}
	dstPort, err := parseV1Port(dstPortStr)
	if err != nil {
		return HAProxyMessage{}, 0, decodeErr(InvalidPort, data[:consumed], err)
	}

	proto := ProtoTCP4
	if wantV6 {
		proto = ProtoTCP6
	}

	return HAProxyMessage{
		Version:         V1,
		Command:         CommandProxy,
		ProxiedProtocol: proto,
		SourceAddress:   srcIP.String(),
		DestAddress:     dstIP.String(),
		SourcePort:      srcPort,
		DestPort:        dstPort,
	}, consumed, nil
}

func parseV1Port(s string) (uint16, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 || n > 65535 {
		return 0, strconv.ErrRange
	}
	return uint16(n), nil
}
