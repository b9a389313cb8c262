// Package dh provides the core's X25519 Diffie-Hellman primitive: key
// generation and scalar multiplication, with rejection of low-order
// (all-zero) outputs.
package dh

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"

	"github.com/veilmesh/core/corerr"
	"github.com/veilmesh/core/crypto/secret"
)

// KeySize is the size in bytes of an X25519 private or public key.
const KeySize = 32

var (
	// ErrLowOrder is returned when a scalar multiplication yields the
	// all-zero output, which happens only for maliciously chosen
	// low-order public keys. Treated as a protocol failure, never silently
	// accepted; it wraps corerr.ErrBadKey.
	ErrLowOrder = fmt.Errorf("dh: low-order public key produced zero output: %w", corerr.ErrBadKey)
	// ErrKeySize is returned for an incorrectly sized key.
	ErrKeySize = errors.New("dh: key must be 32 bytes")
)

// KeyPair is an X25519 private/public keypair.
type KeyPair struct {
	Priv [KeySize]byte
	Pub  [KeySize]byte
}

// Generate creates a fresh, correctly clamped X25519 keypair.
func Generate() (KeyPair, error) {
	var kp KeyPair
	if _, err := io.ReadFull(rand.Reader, kp.Priv[:]); err != nil {
		return KeyPair{}, err
	}
	// RFC 7748 clamping.
	kp.Priv[0] &= 248
	kp.Priv[31] &= 127
	kp.Priv[31] |= 64

	curve25519.ScalarBaseMult(&kp.Pub, &kp.Priv)
	return kp, nil
}

// Zero wipes the private half of kp.
func (kp *KeyPair) Zero() {
	secret.Wipe32(&kp.Priv)
}

// X25519 computes the shared secret between priv and peerPub, rejecting an
// all-zero (low-order) result.
func X25519(priv, peerPub [KeySize]byte) ([]byte, error) {
	shared, err := curve25519.X25519(priv[:], peerPub[:])
	// With 32-byte inputs, curve25519.X25519 fails only on an all-zero
	// (low-order) output.
	if err != nil || isZero(shared) {
		return nil, ErrLowOrder
	}
	return shared, nil
}

func isZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}
