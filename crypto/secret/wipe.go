// Package secret holds the explicit zeroization primitive used everywhere
// 32-byte key material is retired: after a derivation step consumes it, on
// AEAD key replacement, and on ratchet/session destruction.
package secret

import "runtime"

// Wipe overwrites b with zeroes. It is best-effort: Go gives no hard
// guarantee against compiler elision, so this uses runtime.KeepAlive to
// keep the write from being optimized away.
//
//go:noinline
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// Wipe32 overwrites a fixed-size 32-byte secret in place.
//
//go:noinline
func Wipe32(b *[32]byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
