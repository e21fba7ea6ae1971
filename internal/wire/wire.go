// Package wire implements the big-endian read/write primitives and RakNet
// address codec shared by the offline handshake and the PROXY decoder.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
)

// ErrShortBuffer is returned whenever a Reader is asked for more bytes than
// remain.
var ErrShortBuffer = errors.New("wire: short buffer")

// Reader is a cursor over a byte slice. It never allocates and never
// mutates its position on a failed read past the caller's high-water mark —
// callers that need to "peek and restore" should snapshot Pos and reset it.
type Reader struct {
	data []byte
	pos  int
}

// NewReader wraps data for sequential reads starting at offset 0.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Pos returns the current read offset.
func (r *Reader) Pos() int { return r.pos }

// Seek resets the read offset. Used to restore a cursor after a peek.
func (r *Reader) Seek(pos int) { r.pos = pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

// Byte reads a single byte.
func (r *Reader) Byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrShortBuffer
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// Bytes reads n raw bytes. The returned slice aliases the underlying buffer.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, ErrShortBuffer
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Skip advances the cursor by n bytes without returning them.
func (r *Reader) Skip(n int) error {
	if n < 0 || r.pos+n > len(r.data) {
		return ErrShortBuffer
	}
	r.pos += n
	return nil
}

// Uint16 reads a big-endian uint16.
func (r *Reader) Uint16() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// Uint32 reads a big-endian uint32.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Uint64 reads a big-endian uint64.
func (r *Reader) Uint64() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Magic reads len(want) bytes and reports whether they equal want.
// On mismatch the cursor still advances — callers that need to restore
// position on mismatch must snapshot Pos beforehand.
func (r *Reader) Magic(want []byte) (bool, error) {
	got, err := r.Bytes(len(want))
	if err != nil {
		return false, err
	}
	for i := range want {
		if got[i] != want[i] {
			return false, nil
		}
	}
	return true, nil
}

// Writer accumulates a reply datagram.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer, optionally pre-sized.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Byte appends a single byte.
func (w *Writer) Byte(b byte) { w.buf = append(w.buf, b) }

// Raw appends raw bytes.
func (w *Writer) Raw(b []byte) { w.buf = append(w.buf, b...) }

// Uint16 appends a big-endian uint16.
func (w *Writer) Uint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// Uint32 appends a big-endian uint32.
func (w *Writer) Uint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// Uint64 appends a big-endian uint64.
func (w *Writer) Uint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// RakNet address family markers, as they appear on the wire.
const (
	familyIPv4 byte = 4
	familyIPv6 byte = 6
)

// ReadAddress decodes a RakNet-encoded address: one family byte, then
// either a complement-encoded IPv4 + big-endian port, or an IPv6 marker +
// port + flow info + 16 raw bytes + scope id.
func ReadAddress(r *Reader) (netip.AddrPort, error) {
	family, err := r.Byte()
	if err != nil {
		return netip.AddrPort{}, err
	}
	switch family {
	case familyIPv4:
		raw, err := r.Bytes(4)
		if err != nil {
			return netip.AddrPort{}, err
		}
		var octets [4]byte
		for i := range raw {
			octets[i] = ^raw[i]
		}
		port, err := r.Uint16()
		if err != nil {
			return netip.AddrPort{}, err
		}
		return netip.AddrPortFrom(netip.AddrFrom4(octets), port), nil
	case familyIPv6:
		if _, err := r.Uint16(); err != nil { // family marker (redundant with the outer byte)
			return netip.AddrPort{}, err
		}
		port, err := r.Uint16()
		if err != nil {
			return netip.AddrPort{}, err
		}
		if _, err := r.Uint32(); err != nil { // flow info
			return netip.AddrPort{}, err
		}
		raw, err := r.Bytes(16)
		if err != nil {
			return netip.AddrPort{}, err
		}
		var octets [16]byte
		copy(octets[:], raw)
		if _, err := r.Uint32(); err != nil { // scope id
			return netip.AddrPort{}, err
		}
		return netip.AddrPortFrom(netip.AddrFrom16(octets), port), nil
	default:
		return netip.AddrPort{}, fmt.Errorf("wire: unsupported address family %d", family)
	}
}

// WriteAddress encodes addr in RakNet wire format, dispatching on whether
// addr holds a 4-in-6 (IPv4) or genuine IPv6 address.
func WriteAddress(w *Writer, addr netip.AddrPort) {
	ip := addr.Addr()
	if ip.Is4() || ip.Is4In6() {
		w.Byte(familyIPv4)
		octets := ip.As4()
		for _, o := range octets {
			w.Byte(^o)
		}
		w.Uint16(addr.Port())
		return
	}
	w.Byte(familyIPv6)
	w.Uint16(uint16(familyIPv6))
	w.Uint16(addr.Port())
	w.Uint32(0) // flow info
	octets := ip.As16()
	w.Raw(octets[:])
	w.Uint32(0) // scope id
}
