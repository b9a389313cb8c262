// Package session owns the per-peer ratchet table: it maps a device id to
// its live Ratchet, derives the deterministic session identifier bound
// into every envelope, and hands out safe concurrent access to callers.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"sync"

	"github.com/veilmesh/core/corerr"
	"github.com/veilmesh/core/groups"
	"github.com/veilmesh/core/identity"
	"github.com/veilmesh/core/ratchet"
)

// sessionIDLabel keys the HMAC used to derive a session id from the two
// participating device ids, so the id is stable and reproducible without
// either side needing to transmit it out of band.
var sessionIDLabel = []byte("VeilmeshSessionID")

// DeriveID computes the 16-byte session id shared by a and b: HMAC-SHA-256
// keyed by a fixed label over the two device ids in a fixed (sorted) order
// followed by rootKey, truncated to 16 bytes, with the group marker bit
// (groups.GroupSessionMarker) cleared so a 1:1 id is never routed as a
// group message. Sorting the device ids means both participants compute
// the same id regardless of which one is "local"; folding in rootKey means
// two peers that tear down and re-establish a session under a fresh X3DH
// agreement get a fresh id too.
func DeriveID(a, b identity.DeviceID, rootKey [32]byte) [16]byte {
	first, second := a, b
	if lessDeviceID(second, first) {
		first, second = second, first
	}
	mac := hmac.New(sha256.New, sessionIDLabel)
	mac.Write(first[:])
	mac.Write(second[:])
	mac.Write(rootKey[:])
	sum := mac.Sum(nil)
	var out [16]byte
	copy(out[:], sum[:16])
	out[0] &^= groups.GroupSessionMarker
	return out
}

func lessDeviceID(a, b identity.DeviceID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Table is a concurrency-safe map from peer device id to its ratchet.
type Table struct {
	mu       sync.RWMutex
	sessions map[identity.DeviceID]*ratchet.Ratchet
}

func NewTable() *Table {
	return &Table{sessions: make(map[identity.DeviceID]*ratchet.Ratchet)}
}

// Insert stores r for peer, replacing any prior session with that peer.
func (t *Table) Insert(peer identity.DeviceID, r *ratchet.Ratchet) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[peer] = r
}

// Get returns the ratchet for peer, or corerr.ErrNoSession if none exists.
func (t *Table) Get(peer identity.DeviceID) (*ratchet.Ratchet, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.sessions[peer]
	if !ok {
		return nil, corerr.ErrNoSession
	}
	return r, nil
}

// Delete removes a peer's session, idempotently, zeroizing its key
// material first.
func (t *Table) Delete(peer identity.DeviceID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.sessions[peer]; ok {
		r.Destroy()
		delete(t.sessions, peer)
	}
}

// Peers returns the device ids of every peer with a live session.
func (t *Table) Peers() []identity.DeviceID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]identity.DeviceID, 0, len(t.sessions))
	for id := range t.sessions {
		out = append(out, id)
	}
	return out
}
