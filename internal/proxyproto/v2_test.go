package proxyproto

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildV2Header(famProto byte, cmd byte, addrInfo []byte) []byte {
	buf := make([]byte, 16+len(addrInfo))
	copy(buf, sigV2)
	buf[12] = (2 << 4) | cmd
	buf[13] = famProto
	binary.BigEndian.PutUint16(buf[14:16], uint16(len(addrInfo)))
	copy(buf[16:], addrInfo)
	return buf
}

func tcp4AddrInfo(srcIP, dstIP [4]byte, srcPort, dstPort uint16) []byte {
	b := make([]byte, 12)
	copy(b[0:4], srcIP[:])
	copy(b[4:8], dstIP[:])
	binary.BigEndian.PutUint16(b[8:10], srcPort)
	binary.BigEndian.PutUint16(b[10:12], dstPort)
	return b
}

func TestDecodeV2ExactlySixteenBytesUnknown(t *testing.T) {
	// Boundary: v2 header of exactly 16 bytes with family=UNKNOWN => placeholder, no further read.
	data := buildV2Header(0x00, 0x01, nil)
	require.Len(t, data, 16)

	msg, n, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, 16, n)
	require.Equal(t, ProtoUnknown, msg.ProxiedProtocol)
}

func TestDecodeV2LocalCommandIsPlaceholder(t *testing.T) {
	addrInfo := tcp4AddrInfo([4]byte{192, 168, 0, 1}, [4]byte{192, 168, 0, 2}, 1, 2)
	data := buildV2Header(0x11, 0x00, addrInfo)

	msg, n, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, ProtoUnknown, msg.ProxiedProtocol)
}

func TestDecodeV2TCP4ExactlyTwelveBytes(t *testing.T) {
	// Boundary: IPv4 body of exactly 12 bytes => success.
	addrInfo := tcp4AddrInfo([4]byte{203, 0, 113, 5}, [4]byte{203, 0, 113, 6}, 56324, 443)
	data := buildV2Header(0x11, 0x01, addrInfo)

	msg, n, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, ProtoTCP4, msg.ProxiedProtocol)
	require.Equal(t, "203.0.113.5", msg.SourceAddress)
	require.Equal(t, "203.0.113.6", msg.DestAddress)
	require.EqualValues(t, 56324, msg.SourcePort)
	require.EqualValues(t, 443, msg.DestPort)
}

func TestDecodeV2TCP4ElevenBytesIncomplete(t *testing.T) {
	// Boundary: 11 bytes => IncompleteHeader.
	addrInfo := tcp4AddrInfo([4]byte{1, 2, 3, 4}, [4]byte{5, 6, 7, 8}, 1, 2)
	data := buildV2Header(0x11, 0x01, addrInfo)
	data = data[:len(data)-1] // truncate to 11 bytes of address info
	binary.BigEndian.PutUint16(data[14:16], 11)

	_, _, err := Decode(data)
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, IncompleteHeader, de.Kind)
}

func TestDecodeV2UnixPathsExactly108NoNUL(t *testing.T) {
	// Boundary: UNIX paths of exactly 108 bytes without NUL => accepted, full 108 consumed per field.
	src := make([]byte, 108)
	dst := make([]byte, 108)
	for i := range src {
		src[i] = 'a'
		dst[i] = 'b'
	}
	addrInfo := append(append([]byte{}, src...), dst...)
	data := buildV2Header(0x31, 0x01, addrInfo)

	msg, n, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, ProtoUnixStream, msg.ProxiedProtocol)
	require.Len(t, msg.SourceAddress, 108)
	require.Len(t, msg.DestAddress, 108)
}

func TestDecodeV2IPv6NoCompression(t *testing.T) {
	src := [16]byte{0x20, 0x01, 0x0d, 0xb8}
	dst := [16]byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
	addrInfo := make([]byte, 36)
	copy(addrInfo[0:16], src[:])
	copy(addrInfo[16:32], dst[:])
	binary.BigEndian.PutUint16(addrInfo[32:34], 1234)
	binary.BigEndian.PutUint16(addrInfo[34:36], 443)
	data := buildV2Header(0x21, 0x01, addrInfo)

	msg, _, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, "2001:0db8:0000:0000:0000:0000:0000:0000", msg.SourceAddress)
	require.Equal(t, "2001:0db8:0000:0000:0000:0000:0000:0001", msg.DestAddress)
}

func TestDecodeV2TLVSkippingDoesNotChangeAddresses(t *testing.T) {
	// S6: PROXY v2 with TLVs.
	baseAddr := tcp4AddrInfo([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 1111, 2222)

	tlv1 := append([]byte{0x01, 0x00, 0x08}, make([]byte, 8)...)
	tlv2 := append([]byte{0x02, 0x00, 0x06}, make([]byte, 6)...)

	withTLVs := append(append([]byte{}, baseAddr...), append(tlv1, tlv2...)...)
	dataWithTLVs := buildV2Header(0x11, 0x01, withTLVs)
	dataBaseline := buildV2Header(0x11, 0x01, baseAddr)

	msgBaseline, _, err := Decode(dataBaseline)
	require.NoError(t, err)

	msgWithTLVs, n, err := Decode(dataWithTLVs)
	require.NoError(t, err)
	require.Equal(t, len(dataWithTLVs), n)

	require.Equal(t, msgBaseline.SourceAddress, msgWithTLVs.SourceAddress)
	require.Equal(t, msgBaseline.DestAddress, msgWithTLVs.DestAddress)
	require.Equal(t, msgBaseline.SourcePort, msgWithTLVs.SourcePort)
	require.Equal(t, msgBaseline.DestPort, msgWithTLVs.DestPort)
}

func TestDecodeV2InvalidFamilyCombination(t *testing.T) {
	data := buildV2Header(0x01, 0x01, nil) // family=unspec, transport=stream: undefined combo
	_, _, err := Decode(data)
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, InvalidFamily, de.Kind)
}

func TestDecodeV2UnsupportedVersion(t *testing.T) {
	data := buildV2Header(0x11, 0x01, tcp4AddrInfo([4]byte{1, 1, 1, 1}, [4]byte{2, 2, 2, 2}, 1, 2))
	data[12] = (1 << 4) | 0x01 // v1-in-v2
	_, _, err := Decode(data)
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, UnsupportedVersion, de.Kind)
}

func TestDecodeV2InvalidCommand(t *testing.T) {
	data := buildV2Header(0x11, 0x0F, tcp4AddrInfo([4]byte{1, 1, 1, 1}, [4]byte{2, 2, 2, 2}, 1, 2))
	_, _, err := Decode(data)
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, InvalidCommand, de.Kind)
}
