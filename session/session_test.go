package session

import (
	"testing"

	"github.com/veilmesh/core/corerr"
	"github.com/veilmesh/core/identity"
	"github.com/veilmesh/core/ratchet"
)

func TestDeriveIDSymmetric(t *testing.T) {
	var a, b identity.DeviceID
	a[0] = 1
	b[0] = 2

	var root [32]byte
	root[0] = 0xAB

	idAB := DeriveID(a, b, root)
	idBA := DeriveID(b, a, root)
	if idAB != idBA {
		t.Fatalf("DeriveID must not depend on argument order")
	}

	var c identity.DeviceID
	c[0] = 3
	if DeriveID(a, b, root) == DeriveID(a, c, root) {
		t.Fatalf("different peer pairs must derive different session ids")
	}

	var otherRoot [32]byte
	otherRoot[0] = 0xCD
	if DeriveID(a, b, root) == DeriveID(a, b, otherRoot) {
		t.Fatalf("different root keys must derive different session ids")
	}
}

func TestTableInsertGetDelete(t *testing.T) {
	tbl := NewTable()
	var peer identity.DeviceID
	peer[0] = 9

	if _, err := tbl.Get(peer); err != corerr.ErrNoSession {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	var root [32]byte
	var sid [16]byte
	r, err := ratchet.New(root, sid)
	if err != nil {
		t.Fatalf("ratchet.New: %v", err)
	}
	tbl.Insert(peer, r)

	got, err := tbl.Get(peer)
	if err != nil {
		t.Fatalf("Get after Insert: %v", err)
	}
	if got != r {
		t.Fatalf("Get returned a different ratchet instance")
	}

	tbl.Delete(peer)
	if _, err := tbl.Get(peer); err != corerr.ErrNoSession {
		t.Fatalf("expected ErrNoSession after Delete, got %v", err)
	}
}

func TestTablePeers(t *testing.T) {
	tbl := NewTable()
	var p1, p2 identity.DeviceID
	p1[0], p2[0] = 1, 2
	var root [32]byte
	var sid [16]byte
	r1, _ := ratchet.New(root, sid)
	r2, _ := ratchet.New(root, sid)
	tbl.Insert(p1, r1)
	tbl.Insert(p2, r2)

	peers := tbl.Peers()
	if len(peers) != 2 {
		t.Fatalf("expected 2 peers, got %d", len(peers))
	}
}
