// Package identity manages a device's long-lived signing identity and its
// X3DH prekey material (IK/SPK/OPK), and the wire-shaped public bundle a
// directory service would publish. Publishing/storage and prekey
// replenishment policy are out of scope (spec Non-goals); this package only
// shapes the bundle and its signature so X3DH (package x3dh) has something
// authentic to consume.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/veilmesh/core/crypto/dh"
)

var (
	ErrBadSignature   = errors.New("identity: signed prekey signature invalid")
	ErrMissingOPK      = errors.New("identity: one-time prekey requested but none available")
)

// DeviceID is a stable, human-displayable identifier for a device: the
// SHA-256 of its Ed25519 signing public key.
type DeviceID [32]byte

func DeviceIDFromSigningKey(pub ed25519.PublicKey) DeviceID {
	return DeviceID(sha256.Sum256(pub))
}

func (id DeviceID) String() string { return hex.EncodeToString(id[:]) }

// Bundle holds a device's full private identity: the Ed25519 key that
// signs prekeys, the long-lived X25519 identity key, a medium-lived signed
// prekey, and a pool of one-time prekeys consumed one at a time.
type Bundle struct {
	SigningPub  ed25519.PublicKey
	SigningPriv ed25519.PrivateKey

	IK  dh.KeyPair
	SPK dh.KeyPair

	opks   map[uint32]dh.KeyPair
	nextID uint32
}

// NewBundle generates a fresh signing key, identity key, and signed
// prekey, with an empty one-time-prekey pool.
func NewBundle() (*Bundle, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	ik, err := dh.Generate()
	if err != nil {
		return nil, err
	}
	spk, err := dh.Generate()
	if err != nil {
		return nil, err
	}
	return &Bundle{
		SigningPub:  pub,
		SigningPriv: priv,
		IK:          ik,
		SPK:         spk,
		opks:        make(map[uint32]dh.KeyPair),
	}, nil
}

// DeviceID returns this bundle's stable identifier.
func (b *Bundle) DeviceID() DeviceID {
	return DeviceIDFromSigningKey(b.SigningPub)
}

// AddOneTimePrekeys generates n fresh one-time prekeys and returns their IDs.
func (b *Bundle) AddOneTimePrekeys(n int) ([]uint32, error) {
	ids := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		kp, err := dh.Generate()
		if err != nil {
			return nil, err
		}
		id := b.nextID
		b.nextID++
		b.opks[id] = kp
		ids = append(ids, id)
	}
	return ids, nil
}

// TakeOneTimePrekey removes and returns an arbitrary available one-time
// prekey. The responder MUST delete the consumed prekey atomically with
// computing the X3DH secret; callers should call this exactly once per
// handshake accepted.
func (b *Bundle) TakeOneTimePrekey() (uint32, *dh.KeyPair, bool) {
	for id, kp := range b.opks {
		delete(b.opks, id)
		return id, &kp, true
	}
	return 0, nil, false
}

// OneTimePrekeyByID looks up (without consuming) a specific prekey by id.
func (b *Bundle) OneTimePrekeyByID(id uint32) (dh.KeyPair, bool) {
	kp, ok := b.opks[id]
	return kp, ok
}

// DeleteOneTimePrekey removes a prekey by id, idempotently.
func (b *Bundle) DeleteOneTimePrekey(id uint32) {
	delete(b.opks, id)
}

// TakeOneTimePrekeyByID atomically removes and returns the prekey with the
// given id, for the responder side of X3DH: the consumed OPK private key
// must be deleted in the same step that uses it.
func (b *Bundle) TakeOneTimePrekeyByID(id uint32) (dh.KeyPair, bool) {
	kp, ok := b.opks[id]
	if ok {
		delete(b.opks, id)
	}
	return kp, ok
}

// PrekeyBundle is the public, signable/verifiable artifact a device
// publishes so peers can initiate X3DH with it.
type PrekeyBundle struct {
	SigningPub ed25519.PublicKey
	IKPub      [32]byte
	SPKPub     [32]byte
	SPKSig     []byte
	OPKID      uint32
	OPKPub     *[32]byte // nil if none offered
}

// signedPrekeyMessage is the exact byte sequence signed over: the signing
// identity is bound into the message so a signature cannot be replayed
// across devices.
func signedPrekeyMessage(signingPub ed25519.PublicKey, spkPub [32]byte) []byte {
	msg := make([]byte, 0, len(signingPub)+32)
	msg = append(msg, signingPub...)
	msg = append(msg, spkPub[:]...)
	return msg
}

// PublicBundle builds and signs the publishable prekey bundle. If
// withOneTimePrekey is true, the public half of an available one-time
// prekey is included; its private half stays in the pool until the
// responder consumes it (see TakeOneTimePrekeyByID).
func (b *Bundle) PublicBundle(withOneTimePrekey bool) (PrekeyBundle, error) {
	sig := ed25519.Sign(b.SigningPriv, signedPrekeyMessage(b.SigningPub, b.SPK.Pub))

	pb := PrekeyBundle{
		SigningPub: append(ed25519.PublicKey(nil), b.SigningPub...),
		IKPub:      b.IK.Pub,
		SPKPub:     b.SPK.Pub,
		SPKSig:     sig,
	}
	if withOneTimePrekey {
		for id, kp := range b.opks {
			pb.OPKID = id
			pub := kp.Pub
			pb.OPKPub = &pub
			break
		}
		if pb.OPKPub == nil {
			return PrekeyBundle{}, ErrMissingOPK
		}
	}
	return pb, nil
}

// Verify checks the signed-prekey signature against the bundle's own
// signing key.
func (pb PrekeyBundle) Verify() error {
	msg := signedPrekeyMessage(pb.SigningPub, pb.SPKPub)
	if !ed25519.Verify(pb.SigningPub, msg, pb.SPKSig) {
		return ErrBadSignature
	}
	return nil
}

// DeviceID returns the stable identifier derived from the bundle's signing key.
func (pb PrekeyBundle) DeviceID() DeviceID {
	return DeviceIDFromSigningKey(pb.SigningPub)
}
