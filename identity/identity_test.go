package identity

import "testing"

func TestPublicBundleVerifies(t *testing.T) {
	b, err := NewBundle()
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	pb, err := b.PublicBundle(false)
	if err != nil {
		t.Fatalf("PublicBundle: %v", err)
	}
	if err := pb.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestTamperedSignedPrekeyFailsVerify(t *testing.T) {
	b, err := NewBundle()
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	pb, err := b.PublicBundle(false)
	if err != nil {
		t.Fatalf("PublicBundle: %v", err)
	}
	pb.SPKPub[0] ^= 0xff
	if err := pb.Verify(); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestOneTimePrekeyConsumedOnlyOnce(t *testing.T) {
	b, err := NewBundle()
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	ids, err := b.AddOneTimePrekeys(1)
	if err != nil {
		t.Fatalf("AddOneTimePrekeys: %v", err)
	}
	id := ids[0]

	pb, err := b.PublicBundle(true)
	if err != nil {
		t.Fatalf("PublicBundle: %v", err)
	}
	if pb.OPKPub == nil || pb.OPKID != id {
		t.Fatalf("expected bundle to offer one-time prekey %d", id)
	}

	if _, ok := b.TakeOneTimePrekeyByID(id); !ok {
		t.Fatalf("one-time prekey should still be available to the responder after PublicBundle")
	}
	if _, ok := b.TakeOneTimePrekeyByID(id); ok {
		t.Fatalf("one-time prekey must not be consumable a second time")
	}
}

func TestMissingOPKRequestedFails(t *testing.T) {
	b, err := NewBundle()
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	if _, err := b.PublicBundle(true); err != ErrMissingOPK {
		t.Fatalf("expected ErrMissingOPK, got %v", err)
	}
}

func TestDeviceIDStable(t *testing.T) {
	b, err := NewBundle()
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	pb, err := b.PublicBundle(false)
	if err != nil {
		t.Fatalf("PublicBundle: %v", err)
	}
	if b.DeviceID() != pb.DeviceID() {
		t.Fatalf("bundle and public bundle device ids must match")
	}
	if b.DeviceID().String() == "" {
		t.Fatalf("DeviceID.String must not be empty")
	}
}
