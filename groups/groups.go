// Package groups is a placeholder boundary for group messaging. The core
// only routes to it; it does not implement an MLS (Messaging Layer
// Security) group protocol — that is explicitly out of scope until MLS
// is specified separately.
package groups

import "errors"

// ErrNotImplemented is returned by every MLSManager operation.
var ErrNotImplemented = errors.New("groups: MLS group messaging not implemented")

// GroupSessionMarker is the reserved high bit a session_id must carry for
// the dispatcher to treat an inbound envelope as a group message rather
// than a 1:1 ratchet session. session.DeriveID clears this bit on every
// 1:1 session id, so the marker only ever fires for ids deliberately
// constructed by a (future) group key-agreement scheme.
const GroupSessionMarker = 0x80

// IsGroupSessionID reports whether id's first byte carries the group
// marker bit.
func IsGroupSessionID(id [16]byte) bool {
	return id[0]&GroupSessionMarker != 0
}

// MLSManager is the stub surface a future MLS implementation would fill
// in. Every method fails with ErrNotImplemented; its presence documents
// the intended shape of the eventual group handler without committing to
// MLS wire details here.
type MLSManager struct{}

func NewMLSManager() *MLSManager { return &MLSManager{} }

// HandleEnvelope would route a decoded group envelope to the MLS epoch
// state machine.
func (m *MLSManager) HandleEnvelope(sessionID [16]byte, payload []byte) error {
	return ErrNotImplemented
}

// CreateGroup would establish a new MLS group and return its initial
// epoch's session id.
func (m *MLSManager) CreateGroup(members [][32]byte) ([16]byte, error) {
	return [16]byte{}, ErrNotImplemented
}
