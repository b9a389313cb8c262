// Package kdf implements the core's key-derivation building blocks:
// HKDF-Extract/Expand over HMAC-SHA-256 (RFC 5869), and the domain-separated
// chain-key-advance / message-key derivations used by the ratchet.
package kdf

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/hkdf"
)

const (
	// Size is the output size in bytes of every key this package derives.
	Size = 32
)

var (
	// chainTag and msgTag MUST be distinct: using the same tag for both
	// would make message keys and the next chain key collide.
	chainTag = []byte{0x02}
	msgTag   = []byte{0x01}

	// ratchetChainInfo is the HKDF-Expand info label for the root-chain step.
	ratchetChainInfo = []byte("RatchetChain")

	ErrShortRead = errors.New("kdf: short HKDF read")
)

// Extract is HKDF-Extract(salt, ikm) -> PRK. An empty salt is replaced with
// 32 zero bytes per RFC 5869 (hkdf.Extract already does this when salt is
// nil, so an explicit empty slice is normalized first).
func Extract(salt, ikm []byte) []byte {
	if len(salt) == 0 {
		salt = nil
	}
	return hkdf.Extract(sha256.New, ikm, salt)
}

// Expand is HKDF-Expand(prk, info, l) -> OKM.
func Expand(prk, info []byte, l int) ([]byte, error) {
	out := make([]byte, l)
	r := hkdf.Expand(sha256.New, prk, info)
	n, err := r.Read(out)
	if err != nil {
		return nil, err
	}
	if n != l {
		return nil, ErrShortRead
	}
	return out, nil
}

// RootChainStep performs the root-chain KDF step: given the current root
// key (used as HKDF-Extract salt) and a fresh DH output (the IKM), it
// returns the new root key (the raw PRK) and the newly derived chain key
// (HKDF-Expand of that PRK under the "RatchetChain" label).
func RootChainStep(rootKey, dhShared []byte) (newRootKey, chainKey []byte, err error) {
	prk := Extract(rootKey, dhShared)
	ck, err := Expand(prk, ratchetChainInfo, Size)
	if err != nil {
		return nil, nil, err
	}
	return prk, ck, nil
}

// AdvanceChainKey computes ck' = HMAC-SHA-256(ck, 0x02).
func AdvanceChainKey(ck []byte) []byte {
	return hmacSum(ck, chainTag)
}

// MessageKey computes mk = HMAC-SHA-256(ck, 0x01).
func MessageKey(ck []byte) []byte {
	return hmacSum(ck, msgTag)
}

func hmacSum(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
