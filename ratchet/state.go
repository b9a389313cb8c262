package ratchet

import "github.com/veilmesh/core/crypto/dh"

// headerLen is the exact length of the header/associated-data bound into
// every AEAD call: a 4-byte big-endian counter plus a 32-byte X25519 public key.
const headerLen = 4 + 32

// skippedKey indexes a retained out-of-order message key by the DH
// generation it belongs to (the sender's public key at encryption time)
// and its position within that generation's receive chain. Keying by
// remote pub (not just index) avoids collisions across DH ratchet steps,
// each of which resets the counter to 0.
type skippedKey struct {
	RemotePub [32]byte
	Index     uint32
}

// State is the full mutable state of one 1:1 ratchet session, as laid out
// in the core's data model. Every field here is part of the export/import
// blob (see ExportState/ImportState in codec.go).
type State struct {
	RootKey       [32]byte
	SendChainKey  [32]byte
	RecvChainKey  [32]byte
	SendCounter   uint32
	RecvCounter   uint32
	DH            dh.KeyPair
	LastRemotePub [32]byte
	HasRemotePub  bool
	SessionID     [16]byte
	Skipped       map[skippedKey]msgKey
}

// msgKey is a retained 32-byte message key awaiting an out-of-order decrypt.
type msgKey [32]byte
