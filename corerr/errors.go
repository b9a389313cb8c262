// Package corerr centralizes the error kinds the core surfaces to callers
// and the transport/dispatcher boundary, per the error taxonomy in the
// secure-messaging core's specification.
package corerr

import "errors"

var (
	// ErrNoSession is returned by Send/Receive for an unknown peer.
	ErrNoSession = errors.New("corerr: no session for peer")
	// ErrMismatch is returned when an envelope's session_id does not match
	// the local session.
	ErrMismatch = errors.New("corerr: envelope session id mismatch")
	// ErrAuth is returned on AEAD tag failure or an invalid header.
	ErrAuth = errors.New("corerr: authentication failed")
	// ErrFlood is returned when a skipped-key gap exceeds the configured bound.
	ErrFlood = errors.New("corerr: too many skipped messages")
	// ErrCodec is returned for a malformed envelope.
	ErrCodec = errors.New("corerr: malformed envelope")
	// ErrBadKey is returned for an invalid or low-order X25519 key.
	ErrBadKey = errors.New("corerr: invalid key material")
	// ErrSendFailed is returned when the transport fails to deliver a message.
	ErrSendFailed = errors.New("corerr: transport send failed")
	// ErrState is returned when an exported ratchet state blob has an
	// invalid version or length.
	ErrState = errors.New("corerr: invalid state blob")
)
