package x3dh

import (
	"bytes"
	"testing"

	"github.com/veilmesh/core/identity"
)

func TestAgreementWithoutOneTimePrekey(t *testing.T) {
	alice, err := identity.NewBundle()
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	bob, err := identity.NewBundle()
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}

	bobBundle, err := bob.PublicBundle(false)
	if err != nil {
		t.Fatalf("PublicBundle: %v", err)
	}

	rootA, msg, err := InitiatorAgree(alice.IK, bobBundle, true)
	if err != nil {
		t.Fatalf("InitiatorAgree: %v", err)
	}
	if msg.UsedOneTimeKey {
		t.Fatalf("no OPK was offered; UsedOneTimeKey must be false")
	}

	rootB, err := ResponderAgree(bob, msg)
	if err != nil {
		t.Fatalf("ResponderAgree: %v", err)
	}

	if !bytes.Equal(rootA, rootB) {
		t.Fatalf("initiator and responder root keys do not match")
	}
}

func TestAgreementWithOneTimePrekey(t *testing.T) {
	alice, err := identity.NewBundle()
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	bob, err := identity.NewBundle()
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	if _, err := bob.AddOneTimePrekeys(1); err != nil {
		t.Fatalf("AddOneTimePrekeys: %v", err)
	}

	bobBundle, err := bob.PublicBundle(true)
	if err != nil {
		t.Fatalf("PublicBundle: %v", err)
	}

	rootA, msg, err := InitiatorAgree(alice.IK, bobBundle, true)
	if err != nil {
		t.Fatalf("InitiatorAgree: %v", err)
	}
	if !msg.UsedOneTimeKey {
		t.Fatalf("expected UsedOneTimeKey to be true")
	}

	rootB, err := ResponderAgree(bob, msg)
	if err != nil {
		t.Fatalf("ResponderAgree: %v", err)
	}
	if !bytes.Equal(rootA, rootB) {
		t.Fatalf("initiator and responder root keys do not match")
	}
}

func TestReplayedOneTimePrekeyFails(t *testing.T) {
	alice, err := identity.NewBundle()
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	bob, err := identity.NewBundle()
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	if _, err := bob.AddOneTimePrekeys(1); err != nil {
		t.Fatalf("AddOneTimePrekeys: %v", err)
	}
	bobBundle, err := bob.PublicBundle(true)
	if err != nil {
		t.Fatalf("PublicBundle: %v", err)
	}

	_, msg, err := InitiatorAgree(alice.IK, bobBundle, true)
	if err != nil {
		t.Fatalf("InitiatorAgree: %v", err)
	}

	if _, err := ResponderAgree(bob, msg); err != nil {
		t.Fatalf("first ResponderAgree: %v", err)
	}
	if _, err := ResponderAgree(bob, msg); err != ErrOneTimePrekeyUnavailable {
		t.Fatalf("expected ErrOneTimePrekeyUnavailable on replay, got %v", err)
	}
}

func TestBadSignatureBundleRejected(t *testing.T) {
	alice, err := identity.NewBundle()
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	bob, err := identity.NewBundle()
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	bobBundle, err := bob.PublicBundle(false)
	if err != nil {
		t.Fatalf("PublicBundle: %v", err)
	}
	bobBundle.SPKPub[0] ^= 0xff

	if _, _, err := InitiatorAgree(alice.IK, bobBundle, false); err != identity.ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}
