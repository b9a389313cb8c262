// Package wire holds the low-level big-endian, length-prefixed encoding
// helpers shared by the envelope codec and the QUIC transport's framing.
package wire

import (
	"encoding/binary"
	"errors"
)

// ErrTruncated is returned whenever a read runs past the end of the buffer.
var ErrTruncated = errors.New("wire: truncated input")

// PutUint16 appends a big-endian uint16.
func PutUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

// PutUint32 appends a big-endian uint32.
func PutUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// PutUint64 appends a big-endian uint64.
func PutUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// PutBytes appends a uint32 length prefix followed by b.
func PutBytes(buf []byte, b []byte) []byte {
	buf = PutUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

// PutFixed appends b verbatim, with no length prefix — for fields whose
// size is already fixed by the schema (the keys and session id in the
// ratchet's exported state blob).
func PutFixed(buf []byte, b []byte) []byte {
	return append(buf, b...)
}

// Reader consumes a byte slice left-to-right, tracking position and the
// first error encountered so callers can chain calls without checking
// every one individually.
type Reader struct {
	buf []byte
	pos int
	err error
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) Err() error { return r.err }

func (r *Reader) fail() {
	if r.err == nil {
		r.err = ErrTruncated
	}
}

// Uint16 reads a big-endian uint16.
func (r *Reader) Uint16() uint16 {
	if r.err != nil || r.pos+2 > len(r.buf) {
		r.fail()
		return 0
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos : r.pos+2])
	r.pos += 2
	return v
}

// Uint32 reads a big-endian uint32.
func (r *Reader) Uint32() uint32 {
	if r.err != nil || r.pos+4 > len(r.buf) {
		r.fail()
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v
}

// Uint64 reads a big-endian uint64.
func (r *Reader) Uint64() uint64 {
	if r.err != nil || r.pos+8 > len(r.buf) {
		r.fail()
		return 0
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v
}

// Fixed reads exactly n bytes verbatim.
func (r *Reader) Fixed(n int) []byte {
	if r.err != nil || r.pos+n > len(r.buf) {
		r.fail()
		return nil
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out
}

// Bytes reads a uint32-length-prefixed field.
func (r *Reader) Bytes() []byte {
	n := r.Uint32()
	if r.err != nil {
		return nil
	}
	return r.Fixed(int(n))
}

// Remaining reports how many bytes are left unread.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}
