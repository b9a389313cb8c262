// Package dispatcher drives the core's per-peer ratchets over a pluggable
// transport.Transport: it frames outgoing plaintext into envelope.Envelope
// blobs, routes inbound blobs back to the right ratchet, and owns the
// session table for the local device.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/veilmesh/core/corerr"
	"github.com/veilmesh/core/envelope"
	"github.com/veilmesh/core/groups"
	"github.com/veilmesh/core/identity"
	"github.com/veilmesh/core/ratchet"
	"github.com/veilmesh/core/session"
	"github.com/veilmesh/core/transport"
)

// Stats is a read-only snapshot of dispatcher activity, exposed for
// observability. It carries no metrics-library dependency: spec's
// Non-goals exclude richer transport/queue concerns and no pack example
// wires a metrics client without also wiring a push/scrape backend that
// would be out of scope here, so Stats is a plain accessor, not a new
// subsystem.
type Stats struct {
	SessionCount  int
	MessagesSent  uint64
	MessagesRecv  uint64
	AuthFailures  uint64
	FloodRejected uint64
}

// Dispatcher is the top-level coordination object for one local device.
type Dispatcher struct {
	table *session.Table
	tr    transport.Transport

	mu         sync.RWMutex
	local      identity.DeviceID
	registered bool
	addrs      map[identity.DeviceID]string
	lastSent   map[identity.DeviceID]uint32
	onInbound  func(from identity.DeviceID, plaintext []byte)
	groupMgr   *groups.MLSManager

	stats Stats
}

// New builds a Dispatcher driving tr, with no local device identity yet.
// Callers must call RegisterDevice before the first CreateSessionWith.
// tr.SetOnMessage is called immediately to wire the inbound path; callers
// must not also call it directly afterward.
func New(tr transport.Transport) *Dispatcher {
	d := &Dispatcher{
		table:    session.NewTable(),
		tr:       tr,
		addrs:    make(map[identity.DeviceID]string),
		lastSent: make(map[identity.DeviceID]uint32),
		groupMgr: groups.NewMLSManager(),
	}
	tr.SetOnMessage(d.handleInbound)
	return d
}

// RegisterDevice sets this dispatcher's local device id. It is idempotent:
// calling it again with the same id is a no-op, but calling it with a
// different id once a session already exists is rejected with
// corerr.ErrState, since every live session's derived session_id is bound
// to the local id it was created under.
func (d *Dispatcher) RegisterDevice(id identity.DeviceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.registered && d.local != id && len(d.table.Peers()) > 0 {
		return corerr.ErrState
	}
	d.local = id
	d.registered = true
	return nil
}

// Start brings the underlying transport up.
func (d *Dispatcher) Start(ctx context.Context) error {
	return d.tr.Start(ctx)
}

// Stop destroys every live session, zeroizing its key material, then tears
// the underlying transport down. It is idempotent.
func (d *Dispatcher) Stop() error {
	for _, peer := range d.table.Peers() {
		d.table.Delete(peer)
	}
	return d.tr.Stop()
}

// SetOnInbound registers the callback invoked with decrypted plaintext
// for every message accepted from a known peer.
func (d *Dispatcher) SetOnInbound(fn func(from identity.DeviceID, plaintext []byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onInbound = fn
}

// RegisterPeerAddress records the transport-level address at which peer
// can be reached. Send fails with corerr.ErrNoSession if no address has
// been registered for a peer it has a session with.
func (d *Dispatcher) RegisterPeerAddress(peer identity.DeviceID, addr string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addrs[peer] = addr
}

// CreateSessionWith inserts or replaces the ratchet session for peer,
// seeded from rootKey (the output of a completed X3DH agreement — see
// package x3dh). Both sides of a session call this the same way: the
// ratchet starts with send and receive chains equal to rootKey, and the
// first message in either direction decrypts directly under that shared
// chain before any DH ratchet step has occurred.
func (d *Dispatcher) CreateSessionWith(peer identity.DeviceID, rootKey [32]byte) error {
	d.mu.RLock()
	registered := d.registered
	local := d.local
	d.mu.RUnlock()
	if !registered {
		return corerr.ErrState
	}

	sid := session.DeriveID(local, peer, rootKey)
	r, err := ratchet.New(rootKey, sid)
	if err != nil {
		return err
	}

	d.table.Insert(peer, r)
	d.mu.Lock()
	d.stats.SessionCount = len(d.table.Peers())
	d.mu.Unlock()
	return nil
}

// RotateSession forces an active DH ratchet step on peer's session ahead
// of the next Encrypt, advancing forward secrecy. It is a no-op error,
// corerr.ErrState, if the session has not yet observed any remote key to
// step against.
func (d *Dispatcher) RotateSession(peer identity.DeviceID) error {
	r, err := d.table.Get(peer)
	if err != nil {
		return err
	}
	remotePub, ok := r.LastRemotePub()
	if !ok {
		return corerr.ErrState
	}
	return r.RatchetStep(remotePub)
}

// Send encrypts plaintext under peer's ratchet and hands the resulting
// envelope to the transport. The envelope's associated_data is exactly the
// ratchet header bound into the AEAD tag; callers cannot inject arbitrary
// data into it, per §4.5.
func (d *Dispatcher) Send(ctx context.Context, peer identity.DeviceID, plaintext []byte) error {
	r, err := d.table.Get(peer)
	if err != nil {
		return err
	}

	ct, counter, hdr, err := r.Encrypt(plaintext)
	if err != nil {
		return err
	}

	d.mu.Lock()
	prev := d.lastSent[peer]
	d.lastSent[peer] = counter
	addr, haveAddr := d.addrs[peer]
	local := d.local
	d.mu.Unlock()
	if !haveAddr {
		return corerr.ErrNoSession
	}

	env := envelope.Envelope{
		SessionID:       r.SessionID(),
		MessageIndex:    counter,
		PreviousCounter: prev,
		Timestamp:       uint64(time.Now().UnixMilli()),
		SenderDeviceID:  local,
		AssociatedData:  hdr,
		Ciphertext:      ct,
	}

	if err := d.tr.Send(ctx, addr, env.Encode()); err != nil {
		return corerr.ErrSendFailed
	}

	d.mu.Lock()
	d.stats.MessagesSent++
	d.mu.Unlock()
	return nil
}

// handleInbound is the transport's onMessage callback: it decodes the
// envelope, looks up the sender's ratchet, and decrypts. Every failure is
// dropped silently — never panics, never partially applies a mutation to
// session state. Decrypt failures are counted in Stats (FloodRejected for
// the flood cap, AuthFailures for any other error); codec errors and
// envelopes from unknown peers are dropped without being counted.
func (d *Dispatcher) handleInbound(from string, payload []byte) {
	env, err := envelope.Decode(payload)
	if err != nil {
		return
	}

	if groups.IsGroupSessionID(env.SessionID) {
		d.groupMgr.HandleEnvelope(env.SessionID, payload)
		return
	}

	r, err := d.table.Get(env.SenderDeviceID)
	if err != nil {
		return
	}

	pt, err := r.Decrypt(env.SessionID, env.AssociatedData, env.Ciphertext)
	if err != nil {
		d.mu.Lock()
		switch err {
		case corerr.ErrFlood:
			d.stats.FloodRejected++
		default:
			d.stats.AuthFailures++
		}
		d.mu.Unlock()
		return
	}

	d.mu.Lock()
	d.stats.MessagesRecv++
	onInbound := d.onInbound
	d.mu.Unlock()

	if onInbound != nil {
		onInbound(env.SenderDeviceID, pt)
	}
}

// Stats returns a snapshot of this dispatcher's activity counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats
}
