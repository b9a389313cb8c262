// Package transport defines the abstract byte-blob delivery contract the
// dispatcher drives. Transports know nothing about sessions, ratchets, or
// envelopes — they move opaque payloads between addressed endpoints and
// report failures; everything above this layer is the dispatcher's job.
package transport

import "context"

// Transport is a pluggable delivery mechanism. Implementations must be
// safe for concurrent Send calls and must not invoke the OnMessage
// callback after Stop returns.
type Transport interface {
	// Start brings the transport up: for a listening transport this opens
	// the listener and begins accepting; for a dial-only transport it may
	// be a no-op. Start must return once the transport is ready to Send.
	Start(ctx context.Context) error

	// Stop tears the transport down. It is safe to call Stop without a
	// prior Start, and safe to call twice.
	Stop() error

	// Send delivers payload to addr. Failure to reach addr is reported as
	// corerr.ErrSendFailed-wrapped errors, never a panic.
	Send(ctx context.Context, addr string, payload []byte) error

	// SetOnMessage registers the callback invoked for every inbound
	// payload, along with the address it arrived from. Replaces any
	// previously registered callback. Must be called before Start.
	SetOnMessage(func(from string, payload []byte))
}
