package ratchet

import (
	"github.com/veilmesh/core/corerr"
	"github.com/veilmesh/core/wire"
)

// stateVersion is the leading u16 of every exported state blob. Bumping
// it is a breaking change to ExportState/ImportState's wire shape.
const stateVersion uint16 = 1

// ExportState serializes the ratchet's full mutable state — including
// every retained skipped-message key — to a versioned blob suitable for
// encrypted-at-rest storage by the caller. The core itself never writes
// this blob to disk (spec's Non-goal on plaintext storage covers only
// message content, but persistence mechanics of any kind are the
// caller's responsibility here).
func (r *Ratchet) ExportState() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.state

	buf := make([]byte, 0, 256)
	buf = wire.PutUint16(buf, stateVersion)
	buf = wire.PutFixed(buf, s.RootKey[:])
	buf = wire.PutFixed(buf, s.SendChainKey[:])
	buf = wire.PutFixed(buf, s.RecvChainKey[:])
	buf = wire.PutUint32(buf, s.SendCounter)
	buf = wire.PutUint32(buf, s.RecvCounter)
	buf = wire.PutFixed(buf, s.DH.Priv[:])
	buf = wire.PutFixed(buf, s.DH.Pub[:])
	buf = wire.PutFixed(buf, s.LastRemotePub[:])
	if s.HasRemotePub {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = wire.PutFixed(buf, s.SessionID[:])

	buf = wire.PutUint32(buf, uint32(len(s.Skipped)))
	for k, v := range s.Skipped {
		buf = wire.PutFixed(buf, k.RemotePub[:])
		buf = wire.PutUint32(buf, k.Index)
		buf = wire.PutFixed(buf, v[:])
	}
	return buf
}

// ImportState reconstructs a Ratchet from a blob produced by ExportState.
func ImportState(blob []byte) (*Ratchet, error) {
	vr := wire.NewReader(blob)
	version := vr.Uint16()
	if vr.Err() != nil || version != stateVersion {
		return nil, corerr.ErrState
	}
	r := wire.NewReader(blob[2:])

	var s State
	copy(s.RootKey[:], r.Fixed(32))
	copy(s.SendChainKey[:], r.Fixed(32))
	copy(s.RecvChainKey[:], r.Fixed(32))
	s.SendCounter = r.Uint32()
	s.RecvCounter = r.Uint32()
	copy(s.DH.Priv[:], r.Fixed(32))
	copy(s.DH.Pub[:], r.Fixed(32))
	copy(s.LastRemotePub[:], r.Fixed(32))
	hasRemote := r.Fixed(1)
	copy(s.SessionID[:], r.Fixed(16))

	n := r.Uint32()
	if r.Err() != nil {
		return nil, corerr.ErrState
	}
	s.Skipped = make(map[skippedKey]msgKey, n)
	for i := uint32(0); i < n; i++ {
		var k skippedKey
		copy(k.RemotePub[:], r.Fixed(32))
		k.Index = r.Uint32()
		var v msgKey
		copy(v[:], r.Fixed(32))
		if r.Err() != nil {
			return nil, corerr.ErrState
		}
		s.Skipped[k] = v
	}
	if r.Err() != nil || r.Remaining() != 0 {
		return nil, corerr.ErrState
	}
	s.HasRemotePub = len(hasRemote) == 1 && hasRemote[0] == 1

	return &Ratchet{state: s}, nil
}
