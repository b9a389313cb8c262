// Package x3dh implements the X3DH-style initial key agreement: it derives
// a 32-byte root key from a combination of long-term identity, medium-term
// signed-prekey, optional one-time-prekey, and ephemeral key material.
//
// The pack this core was grown from carries three divergent, duplicated
// X3DH implementations; this package is the single canonical replacement
// — see DESIGN.md.
package x3dh

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/veilmesh/core/crypto/dh"
	"github.com/veilmesh/core/crypto/secret"
	"github.com/veilmesh/core/identity"
)

// rootKeyLabel is the HMAC key used to derive the X3DH root key from the
// concatenated DH outputs: root_key = HMAC-SHA-256("X3DHRootKey", secret).
var rootKeyLabel = []byte("X3DHRootKey")

// InitialMessage is the handshake envelope the initiator sends alongside
// its first ratchet-encrypted message. It carries only public material —
// never the derived root key.
type InitialMessage struct {
	InitiatorIKPub  [32]byte
	EphemeralPub    [32]byte
	UsedOneTimeKey  bool
	OneTimePrekeyID uint32
}

// InitiatorAgree runs the initiator side of X3DH against a responder's
// published, signed prekey bundle. It returns the 32-byte root key and the
// InitialMessage to hand to the responder (over the dispatcher's first
// envelope). useOneTimePrekey requests DH4 when the bundle offers one.
func InitiatorAgree(ownIK dh.KeyPair, responder identity.PrekeyBundle, useOneTimePrekey bool) (rootKey []byte, msg InitialMessage, err error) {
	if err := responder.Verify(); err != nil {
		return nil, InitialMessage{}, err
	}

	eph, err := dh.Generate()
	if err != nil {
		return nil, InitialMessage{}, err
	}
	defer eph.Zero()

	dh1, err := dh.X25519(ownIK.Priv, responder.SPKPub)
	if err != nil {
		return nil, InitialMessage{}, err
	}
	dh2, err := dh.X25519(eph.Priv, responder.IKPub)
	if err != nil {
		return nil, InitialMessage{}, err
	}
	dh3, err := dh.X25519(eph.Priv, responder.SPKPub)
	if err != nil {
		return nil, InitialMessage{}, err
	}

	secretMaterial := concat(dh1, dh2, dh3)

	msg = InitialMessage{
		InitiatorIKPub: ownIK.Pub,
		EphemeralPub:   eph.Pub,
	}

	if useOneTimePrekey && responder.OPKPub != nil {
		dh4, err := dh.X25519(eph.Priv, *responder.OPKPub)
		if err != nil {
			return nil, InitialMessage{}, err
		}
		secretMaterial = concat(secretMaterial, dh4)
		msg.UsedOneTimeKey = true
		msg.OneTimePrekeyID = responder.OPKID
		defer secret.Wipe(dh4)
	}
	defer secret.Wipe(secretMaterial)
	defer secret.Wipe(dh1)
	defer secret.Wipe(dh2)
	defer secret.Wipe(dh3)

	return deriveRootKey(secretMaterial), msg, nil
}

// ResponderAgree runs the responder side of X3DH. own is the responder's
// full private bundle; the initiator's identity and ephemeral public keys
// are taken from msg. If msg.UsedOneTimeKey is set, the matching one-time
// prekey is atomically consumed from own's pool, and
// ErrOneTimePrekeyUnavailable is returned if it is no longer present
// (already used, or unknown).
func ResponderAgree(own *identity.Bundle, msg InitialMessage) ([]byte, error) {
	dh1, err := dh.X25519(own.SPK.Priv, msg.InitiatorIKPub)
	if err != nil {
		return nil, err
	}
	dh2, err := dh.X25519(own.IK.Priv, msg.EphemeralPub)
	if err != nil {
		return nil, err
	}
	dh3, err := dh.X25519(own.SPK.Priv, msg.EphemeralPub)
	if err != nil {
		return nil, err
	}
	secretMaterial := concat(dh1, dh2, dh3)
	defer secret.Wipe(dh1)
	defer secret.Wipe(dh2)
	defer secret.Wipe(dh3)
	defer secret.Wipe(secretMaterial)

	if msg.UsedOneTimeKey {
		opk, ok := own.TakeOneTimePrekeyByID(msg.OneTimePrekeyID)
		if !ok {
			return nil, ErrOneTimePrekeyUnavailable
		}
		dh4, err := dh.X25519(opk.Priv, msg.EphemeralPub)
		opk.Zero()
		if err != nil {
			return nil, err
		}
		secretMaterial = concat(secretMaterial, dh4)
		defer secret.Wipe(dh4)
	}

	return deriveRootKey(secretMaterial), nil
}

func deriveRootKey(secretMaterial []byte) []byte {
	mac := hmac.New(sha256.New, rootKeyLabel)
	mac.Write(secretMaterial)
	return mac.Sum(nil)
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
