package proxyproto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

var sigV2 = []byte{0x0D, 0x0A, 0x0D, 0x0A, 0x00, 0x0D, 0x0A, 0x51, 0x55, 0x49, 0x54, 0x0A}

func famProtoByte(f v2AddrFamily, t v2Transport) byte {
	return byte(f)<<4 | byte(t)
}

// famProto -> ProxiedProtocol for the defined v2 combinations. Any byte
// value not present here is an undefined family/transport pairing.
var v2Protocols = map[byte]ProxiedProtocol{
	famProtoByte(v2AFUnspec, v2TransUnspec): ProtoUnknown,
	famProtoByte(v2AFInet, v2TransStream):   ProtoTCP4,
	famProtoByte(v2AFInet, v2TransDgram):    ProtoUDP4,
	famProtoByte(v2AFInet6, v2TransStream):  ProtoTCP6,
	famProtoByte(v2AFInet6, v2TransDgram):   ProtoUDP6,
	famProtoByte(v2AFUnix, v2TransStream):   ProtoUnixStream,
	famProtoByte(v2AFUnix, v2TransDgram):    ProtoUnixDgram,
}

// decodeV2 parses a PROXY v2 (binary) header from the start of data,
// returning the number of bytes consumed so the caller can hand the
// remainder to the offline classifier.
func decodeV2(data []byte) (HAProxyMessage, int, error) {
	if len(data) < 16 {
		return HAProxyMessage{}, 0, decodeErr(IncompleteHeader, data, nil)
	}
	if !bytes.Equal(data[:12], sigV2) {
		return HAProxyMessage{}, 0, decodeErr(IncompleteHeader, data[:16], nil)
	}

	verCmd := data[12]
	version := verCmd >> 4
	if version != 2 {
		return HAProxyMessage{}, 0, decodeErr(UnsupportedVersion, data[:16], nil)
	}
	cmd := Command(verCmd & 0x0F)
	if cmd != CommandLocal && cmd != CommandProxy {
		return HAProxyMessage{}, 0, decodeErr(InvalidCommand, data[:16], nil)
	}

	famProto := data[13]
	proto, known := v2Protocols[famProto]
	if !known {
		return HAProxyMessage{}, 0, decodeErr(InvalidFamily, data[:16], nil)
	}

	addrInfoLen := int(binary.BigEndian.Uint16(data[14:16]))
	total := 16 + addrInfoLen
	if len(data) < total {
		return HAProxyMessage{}, 0, decodeErr(IncompleteHeader, data, nil)
	}

	if cmd == CommandLocal || proto == ProtoUnknown {
		return unknownMessage(V2, cmd), total, nil
	}

	body := data[16:total]
	msg := HAProxyMessage{Version: V2, Command: cmd, ProxiedProtocol: proto}

	var addrLen int
	switch proto {
	case ProtoUnixStream, ProtoUnixDgram:
		addrLen = 216
		if len(body) < addrLen {
			return HAProxyMessage{}, 0, decodeErr(IncompleteHeader, data[:total], nil)
		}
		msg.SourceAddress = trimUnixPath(body[0:108])
		msg.DestAddress = trimUnixPath(body[108:216])
	case ProtoTCP4, ProtoUDP4:
		addrLen = 12
		if len(body) < addrLen {
			return HAProxyMessage{}, 0, decodeErr(IncompleteHeader, data[:total], nil)
		}
		msg.SourceAddress = formatIPv4(body[0:4])
		msg.DestAddress = formatIPv4(body[4:8])
		msg.SourcePort = binary.BigEndian.Uint16(body[8:10])
		msg.DestPort = binary.BigEndian.Uint16(body[10:12])
	case ProtoTCP6, ProtoUDP6:
		addrLen = 36
		if len(body) < addrLen {
			return HAProxyMessage{}, 0, decodeErr(IncompleteHeader, data[:total], nil)
		}
		msg.SourceAddress = formatIPv6NoCompress(body[0:16])
		msg.DestAddress = formatIPv6NoCompress(body[16:32])
		msg.SourcePort = binary.BigEndian.Uint16(body[32:34])
		msg.DestPort = binary.BigEndian.Uint16(body[34:36])
	}

	isUnix := proto == ProtoUnixStream || proto == ProtoUnixDgram
	if !isUnix && (msg.SourcePort == 0 || msg.DestPort == 0) {
		return HAProxyMessage{}, 0, decodeErr(InvalidPort, data[:total], nil)
	}

	if err := skipTLVs(body[addrLen:]); err != nil {
		return HAProxyMessage{}, 0, decodeErr(IncompleteHeader, data[:total], err)
	}

	return msg, total, nil
}

// skipTLVs walks the TLV trailer without interpreting any value: while
// >=4 bytes remain, skip a type byte, read a u16 length, and skip that
// many bytes. A trailer that runs out mid-TLV is tolerated (the final pad
// bytes are not a TLV at all).
func skipTLVs(b []byte) error {
	for len(b) >= 4 {
		length := int(binary.BigEndian.Uint16(b[1:3]))
		if len(b) < 3+length {
			return nil
		}
		b = b[3+length:]
	}
	return nil
}

func trimUnixPath(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func formatIPv4(b []byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
}

// formatIPv6NoCompress renders 16 raw bytes as eight ':'-separated hex
// groups with no zero-compression — deliberately not
// net.IP.String(), which would apply "::" compression.
func formatIPv6NoCompress(b []byte) string {
	groups := make([]string, 8)
	for i := 0; i < 8; i++ {
		groups[i] = fmt.Sprintf("%04x", binary.BigEndian.Uint16(b[i*2:i*2+2]))
	}
	return strings.Join(groups, ":")
}
