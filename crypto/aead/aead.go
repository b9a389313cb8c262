// Package aead provides the core's only authenticated-encryption primitive:
// ChaCha20-Poly1305-IETF with a fresh random 96-bit nonce per call.
package aead

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/veilmesh/core/crypto/secret"
)

const (
	// KeySize is the size in bytes of a ChaCha20-Poly1305 key.
	KeySize = chacha20poly1305.KeySize
	// NonceSize is the size in bytes of the IETF nonce.
	NonceSize = chacha20poly1305.NonceSize
	// Overhead is the size in bytes of the Poly1305 tag.
	Overhead = chacha20poly1305.Overhead
)

var (
	ErrKeySize          = errors.New("aead: key must be 32 bytes")
	ErrCiphertextTooShort = errors.New("aead: ciphertext shorter than nonce+tag")
	ErrOpenFailed       = errors.New("aead: decryption failed")
)

// Encrypt seals plaintext under key with associatedData bound into the tag.
// Output framing is nonce(12) || ciphertext || tag(16) — the codec never
// stores the nonce separately. key is wiped before Encrypt returns.
func Encrypt(key []byte, plaintext, associatedData []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	defer secret.Wipe(key)

	cipher, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, NonceSize+len(plaintext)+Overhead)
	out = append(out, nonce...)
	out = cipher.Seal(out, nonce, plaintext, associatedData)
	return out, nil
}

// Decrypt verifies and opens a nonce||ciphertext||tag blob produced by
// Encrypt. It returns an error on a short input or a tag mismatch; it never
// mutates any caller state on failure. key is wiped before Decrypt returns.
func Decrypt(key []byte, blob, associatedData []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	defer secret.Wipe(key)

	if len(blob) < NonceSize+Overhead {
		return nil, ErrCiphertextTooShort
	}

	cipher, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	nonce := blob[:NonceSize]
	ct := blob[NonceSize:]
	plaintext, err := cipher.Open(nil, nonce, ct, associatedData)
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plaintext, nil
}
