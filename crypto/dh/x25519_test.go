package dh

import "testing"

func TestX25519Agreement(t *testing.T) {
	alice, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	bob, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	sharedAlice, err := X25519(alice.Priv, bob.Pub)
	if err != nil {
		t.Fatalf("X25519 alice: %v", err)
	}
	sharedBob, err := X25519(bob.Priv, alice.Pub)
	if err != nil {
		t.Fatalf("X25519 bob: %v", err)
	}

	if string(sharedAlice) != string(sharedBob) {
		t.Fatalf("shared secrets do not match")
	}
}

func TestLowOrderPublicKeyRejected(t *testing.T) {
	var zero [32]byte
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := X25519(kp.Priv, zero); err != ErrLowOrder {
		t.Fatalf("expected ErrLowOrder, got %v", err)
	}
}

func TestZeroWipesPrivateKey(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	kp.Zero()
	var zero [32]byte
	if kp.Priv != zero {
		t.Fatalf("private key not wiped")
	}
}
