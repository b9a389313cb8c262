// Package ratchet implements the per-peer Double-Ratchet state machine: a
// symmetric chain-key ratchet advanced on every message, folded together
// with a Diffie-Hellman ratchet advanced whenever a peer's public key
// changes. It is the core's forward-secrecy and break-in-recovery engine.
package ratchet

import (
	"encoding/binary"
	"sync"

	"github.com/veilmesh/core/corerr"
	"github.com/veilmesh/core/crypto/aead"
	"github.com/veilmesh/core/crypto/dh"
	"github.com/veilmesh/core/crypto/kdf"
	"github.com/veilmesh/core/crypto/secret"
)

// MaxSkippedKeys bounds how many out-of-order message keys a single ratchet
// will retain before refusing to advance further, closing the
// unbounded-memory attack a peer could otherwise mount by claiming a huge
// message counter.
const MaxSkippedKeys = 1000

// Ratchet is a single peer's Double-Ratchet session. All exported methods
// are safe for concurrent use; each call holds an internal lock for its
// duration, so a session table need not serialize calls into the same
// Ratchet itself (though it still needs its own lock to protect the table).
type Ratchet struct {
	mu    sync.Mutex
	state State
}

// New builds a freshly initialized ratchet: root, send and receive chain
// keys all start equal to rootKey, counters at zero, no remote key seen
// yet, and a fresh local X25519 keypair. This is the shape both sides of a
// session start from; the first message in either direction performs no
// DH step (see Decrypt), and chain keys change only once one side calls
// RatchetStep.
func New(rootKey [32]byte, sessionID [16]byte) (*Ratchet, error) {
	kp, err := dh.Generate()
	if err != nil {
		return nil, err
	}
	return &Ratchet{
		state: State{
			RootKey:      rootKey,
			SendChainKey: rootKey,
			RecvChainKey: rootKey,
			DH:           kp,
			SessionID:    sessionID,
			Skipped:      make(map[skippedKey]msgKey),
		},
	}, nil
}

// SessionID returns the session identifier this ratchet was built with.
func (r *Ratchet) SessionID() [16]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.SessionID
}

// LocalPublicKey returns the public half of the ratchet's current DH
// keypair, the value every outgoing header carries.
func (r *Ratchet) LocalPublicKey() [32]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.DH.Pub
}

// RatchetStep performs an active Diffie-Hellman ratchet step against
// remotePub: it first replaces the local DH keypair with a fresh one (as
// invariant 2 requires), computes the new keypair's shared secret with
// remotePub, and folds it into the root key to derive a new chain key
// shared by both send and receive sides, resetting both counters to zero.
// A caller uses this to force a fresh chain ahead of its next Encrypt, as a
// forward-secrecy rekey once a remote key has been observed. Decrypt never
// calls this variant; see ratchetStepLocked.
func (r *Ratchet) RatchetStep(remotePub [32]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next, err := r.ratchetStepLocked(r.state, remotePub, true)
	if err != nil {
		return err
	}
	r.state = next
	return nil
}

// LastRemotePub returns the most recently observed remote public key, and
// whether the ratchet has observed one yet.
func (r *Ratchet) LastRemotePub() ([32]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.LastRemotePub, r.state.HasRemotePub
}

// ratchetStepLocked derives a new root key and aliased chain key from a
// Diffie-Hellman exchange with remotePub. When rotate is true (the active
// variant, driven by RatchetStep) it generates a fresh local keypair first
// and uses that new private key in the exchange, satisfying invariant 2.
// When rotate is false (the passive variant, driven by Decrypt mirroring a
// peer's own active step) it reuses the current, still-valid local private
// key: the peer's active step targeted this key's public half, and rotating
// it away before computing the matching shared secret would make the two
// sides land on different values. The side that observes a changed remote
// key without itself choosing to rekey always uses the passive variant;
// it rotates on its own schedule, via its own later RatchetStep call.
func (r *Ratchet) ratchetStepLocked(s State, remotePub [32]byte, rotate bool) (State, error) {
	if rotate {
		newKP, err := dh.Generate()
		if err != nil {
			return State{}, err
		}
		s.DH.Zero()
		s.DH = newKP
	}

	shared, err := dh.X25519(s.DH.Priv, remotePub)
	if err != nil {
		return State{}, err
	}
	defer secret.Wipe(shared)

	newRoot, chain, err := kdf.RootChainStep(s.RootKey[:], shared)
	if err != nil {
		return State{}, err
	}

	copy(s.RootKey[:], newRoot)
	copy(s.SendChainKey[:], chain)
	copy(s.RecvChainKey[:], chain)
	secret.Wipe(newRoot)
	secret.Wipe(chain)
	s.SendCounter = 0
	s.RecvCounter = 0
	s.LastRemotePub = remotePub
	s.HasRemotePub = true
	return s, nil
}

// buildHeader builds the 36-byte associated-data header bound into every
// AEAD call: the big-endian message counter followed by the sender's
// current public key. It is exactly the envelope's associated_data field
// and the ratchet never binds any other byte into the AEAD tag.
func buildHeader(counter uint32, pub [32]byte) []byte {
	h := make([]byte, headerLen)
	binary.BigEndian.PutUint32(h[:4], counter)
	copy(h[4:], pub[:])
	return h
}

// Encrypt seals plaintext under the ratchet's current send chain. The AAD
// bound into the tag is exactly the message header — u32_be(counter) ‖
// dh_pub(32) — and nothing else; the returned header bytes are what the
// caller must carry as the envelope's associated_data field. Encrypt never
// performs a DH step; the header always carries whatever local public key
// is currently active.
func (r *Ratchet) Encrypt(plaintext []byte) (ciphertext []byte, counter uint32, header []byte, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := buildHeader(r.state.SendCounter, r.state.DH.Pub)

	mk := kdf.MessageKey(r.state.SendChainKey[:])
	defer secret.Wipe(mk)

	ct, err := aead.Encrypt(append([]byte(nil), mk...), plaintext, h)
	if err != nil {
		return nil, 0, nil, err
	}

	nextChain := kdf.AdvanceChainKey(r.state.SendChainKey[:])
	secret.Wipe(r.state.SendChainKey[:])
	copy(r.state.SendChainKey[:], nextChain)
	secret.Wipe(nextChain)

	counter = r.state.SendCounter
	r.state.SendCounter++
	return ct, counter, h, nil
}

// Decrypt opens an inbound message. header must be exactly the
// u32_be(counter) ‖ dh_pub(32) bytes carried as the envelope's
// associated_data field; it is parsed for the message counter and the
// sender's current public key and bound into the AEAD tag verbatim, per
// §4.5 — no other field is ever added to the AAD. sessionID, if non-zero,
// must match the ratchet's own or corerr.ErrMismatch is returned. On any
// authentication or protocol failure the ratchet's state is left
// completely unchanged — callers can safely retry or discard.
func (r *Ratchet) Decrypt(sessionID [16]byte, header, ciphertext []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(header) != headerLen {
		return nil, corerr.ErrAuth
	}
	counter := binary.BigEndian.Uint32(header[:4])
	var remotePub [32]byte
	copy(remotePub[:], header[4:])

	var zero [16]byte
	if sessionID != zero && sessionID != r.state.SessionID {
		return nil, corerr.ErrMismatch
	}

	work := r.state
	work.Skipped = cloneSkipped(r.state.Skipped)

	if !work.HasRemotePub {
		// The very first remote key this ratchet has ever seen carries no
		// DH step: both sides of a session start with send and receive
		// chains already equal to the agreed root key (see New), so the
		// first message in either direction decrypts directly under that
		// shared chain. Performing a DH step here instead would pair this
		// side's current private key against the peer's key in a way the
		// peer has no matching way to reproduce on its own first message.
		work.LastRemotePub = remotePub
		work.HasRemotePub = true
	} else if work.LastRemotePub != remotePub {
		// The peer has rotated its key, which only happens as the result
		// of its own active RatchetStep. This side mirrors that with the
		// passive variant: see ratchetStepLocked.
		next, err := r.ratchetStepLocked(work, remotePub, false)
		if err != nil {
			return nil, err
		}
		next.Skipped = work.Skipped
		work = next
	}

	if mk, ok := work.Skipped[skippedKey{RemotePub: remotePub, Index: counter}]; ok {
		pt, err := aead.Decrypt(append([]byte(nil), mk[:]...), ciphertext, header)
		if err != nil {
			return nil, corerr.ErrAuth
		}
		delete(work.Skipped, skippedKey{RemotePub: remotePub, Index: counter})
		r.commit(work)
		return pt, nil
	}

	if counter < work.RecvCounter {
		// An old, non-skipped index with no retained key, such as a
		// replay of a message whose key was already used.
		return nil, corerr.ErrAuth
	}

	if uint64(counter-work.RecvCounter)+uint64(len(work.Skipped)) > MaxSkippedKeys {
		return nil, corerr.ErrFlood
	}

	for work.RecvCounter < counter {
		mk := kdf.MessageKey(work.RecvChainKey[:])
		work.Skipped[skippedKey{RemotePub: remotePub, Index: work.RecvCounter}] = msgKey(mk)
		secret.Wipe(mk)
		nextChain := kdf.AdvanceChainKey(work.RecvChainKey[:])
		copy(work.RecvChainKey[:], nextChain)
		secret.Wipe(nextChain)
		work.RecvCounter++
	}

	mk := kdf.MessageKey(work.RecvChainKey[:])
	pt, err := aead.Decrypt(append([]byte(nil), mk...), ciphertext, header)
	secret.Wipe(mk)
	if err != nil {
		return nil, corerr.ErrAuth
	}

	nextChain := kdf.AdvanceChainKey(work.RecvChainKey[:])
	copy(work.RecvChainKey[:], nextChain)
	secret.Wipe(nextChain)
	work.RecvCounter = counter + 1

	r.commit(work)
	return pt, nil
}

// Destroy zeroizes every piece of key material this ratchet holds: both
// chain keys, the root key, the local DH private key, and every retained
// skipped message key. A destroyed ratchet must not be used again. Callers
// tear a session down through session.Table.Delete or Dispatcher.Stop,
// both of which call this.
func (r *Ratchet) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	secret.Wipe(r.state.RootKey[:])
	secret.Wipe(r.state.SendChainKey[:])
	secret.Wipe(r.state.RecvChainKey[:])
	r.state.DH.Zero()
	for k, v := range r.state.Skipped {
		secret.Wipe(v[:])
		delete(r.state.Skipped, k)
	}
}

func (r *Ratchet) commit(s State) {
	r.state = s
}

func cloneSkipped(m map[skippedKey]msgKey) map[skippedKey]msgKey {
	out := make(map[skippedKey]msgKey, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
