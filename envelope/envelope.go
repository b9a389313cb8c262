// Package envelope defines the wire container the dispatcher exchanges
// over a Transport: a ratchet-encrypted message plus the routing and
// replay-detection metadata needed to hand it to the right session.
package envelope

import (
	"github.com/veilmesh/core/corerr"
	"github.com/veilmesh/core/identity"
	"github.com/veilmesh/core/wire"
)

// Envelope is the deterministic, length-prefixed frame carried by every
// Transport.Send call. Field order is fixed and encoding is one-way
// deterministic: the same Envelope always serializes to the same bytes.
// AssociatedData is exactly the ratchet's header — u32_be(message_index) ‖
// dh_pub(32) — bound into the AEAD tag; it carries no other data, and the
// dh_pub it embeds is the only copy of the sender's current public key on
// the wire.
type Envelope struct {
	SessionID       [16]byte
	MessageIndex    uint32
	PreviousCounter uint32
	Timestamp       uint64
	SenderDeviceID  identity.DeviceID
	AssociatedData  []byte
	Ciphertext      []byte
}

// Encode serializes e into its wire form, a flat concatenation in order:
//
//	len+bytes session_id
//	4 bytes   message_index (big-endian)
//	4 bytes   previous_counter (big-endian)
//	8 bytes   timestamp (big-endian, unix milliseconds)
//	len+bytes sender_device_id
//	len+bytes associated_data
//	len+bytes ciphertext
//
// session_id and sender_device_id are length-prefixed on the wire like
// every other variable field; this implementation's identity model always
// fills them from fixed-size [16]byte/[32]byte values (see DESIGN.md), and
// Decode rejects any other length for those two fields.
func (e Envelope) Encode() []byte {
	buf := make([]byte, 0, 16+4+4+8+32+4+len(e.AssociatedData)+4+len(e.Ciphertext))
	buf = wire.PutBytes(buf, e.SessionID[:])
	buf = wire.PutUint32(buf, e.MessageIndex)
	buf = wire.PutUint32(buf, e.PreviousCounter)
	buf = wire.PutUint64(buf, e.Timestamp)
	buf = wire.PutBytes(buf, e.SenderDeviceID[:])
	buf = wire.PutBytes(buf, e.AssociatedData)
	buf = wire.PutBytes(buf, e.Ciphertext)
	return buf
}

// Decode parses an Envelope from buf. Trailing bytes after the ciphertext
// field are rejected as malformed rather than silently ignored: a decoder
// that tolerates trailing garbage invites smuggling extra data past a
// naive length check on the transport side. session_id and
// sender_device_id must decode to exactly 16 and 32 bytes respectively.
func Decode(buf []byte) (Envelope, error) {
	r := wire.NewReader(buf)

	var e Envelope
	sid := r.Bytes()
	if r.Err() == nil && len(sid) != len(e.SessionID) {
		return Envelope{}, corerr.ErrCodec
	}
	copy(e.SessionID[:], sid)
	e.MessageIndex = r.Uint32()
	e.PreviousCounter = r.Uint32()
	e.Timestamp = r.Uint64()
	devID := r.Bytes()
	if r.Err() == nil && len(devID) != len(e.SenderDeviceID) {
		return Envelope{}, corerr.ErrCodec
	}
	copy(e.SenderDeviceID[:], devID)
	e.AssociatedData = append([]byte(nil), r.Bytes()...)
	e.Ciphertext = append([]byte(nil), r.Bytes()...)

	if err := r.Err(); err != nil {
		return Envelope{}, corerr.ErrCodec
	}
	if r.Remaining() != 0 {
		return Envelope{}, corerr.ErrCodec
	}
	return e, nil
}
