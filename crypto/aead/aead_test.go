package aead

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	plaintext := []byte("hello veilmesh ratchet")
	ad := []byte("associated data")

	ct, err := Encrypt(append([]byte(nil), key...), plaintext, ad)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if len(ct) != NonceSize+len(plaintext)+Overhead {
		t.Fatalf("unexpected ciphertext length %d", len(ct))
	}

	pt, err := Decrypt(append([]byte(nil), key...), ct, ad)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatalf("decrypted != plaintext")
	}
}

func TestTamperedCiphertextFails(t *testing.T) {
	key := make([]byte, KeySize)
	ct, err := Encrypt(append([]byte(nil), key...), []byte("msg"), nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	ct[len(ct)-1] ^= 0xff
	if _, err := Decrypt(append([]byte(nil), key...), ct, nil); err != ErrOpenFailed {
		t.Fatalf("expected ErrOpenFailed, got %v", err)
	}
}

func TestWrongAssociatedDataFails(t *testing.T) {
	key := make([]byte, KeySize)
	ct, err := Encrypt(append([]byte(nil), key...), []byte("msg"), []byte("a"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(append([]byte(nil), key...), ct, []byte("b")); err != ErrOpenFailed {
		t.Fatalf("expected ErrOpenFailed, got %v", err)
	}
}

func TestNoncesAreRandom(t *testing.T) {
	key := make([]byte, KeySize)
	ct1, _ := Encrypt(append([]byte(nil), key...), []byte("msg"), nil)
	ct2, _ := Encrypt(append([]byte(nil), key...), []byte("msg"), nil)
	if bytes.Equal(ct1[:NonceSize], ct2[:NonceSize]) {
		t.Fatalf("nonces collided across calls")
	}
}

func TestShortCiphertextRejected(t *testing.T) {
	key := make([]byte, KeySize)
	if _, err := Decrypt(key, []byte{1, 2, 3}, nil); err != ErrCiphertextTooShort {
		t.Fatalf("expected ErrCiphertextTooShort, got %v", err)
	}
}

func TestWrongKeySizeRejected(t *testing.T) {
	if _, err := Encrypt([]byte{1, 2, 3}, []byte("x"), nil); err != ErrKeySize {
		t.Fatalf("expected ErrKeySize, got %v", err)
	}
}
