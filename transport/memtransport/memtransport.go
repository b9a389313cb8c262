// Package memtransport implements an in-process transport.Transport for
// tests and single-binary demos: peers exchange payloads through a shared
// Network registry instead of a socket.
//
// The pack this core grew from wired test transports through a single
// package-level paired instance — a global anyone importing the package
// shares. That does not survive more than one session pair per process.
// Network replaces it with an explicit, instance-scoped factory: each test
// or demo creates its own Network and registers only the addresses it
// needs, so unrelated tests never see each other's traffic.
package memtransport

import (
	"context"
	"sync"

	"github.com/veilmesh/core/corerr"
)

// Network is a registry of memtransport endpoints reachable by address.
// A single Network can host any number of Transports; each is only wired
// to the others sharing the same Network value.
type Network struct {
	mu    sync.RWMutex
	nodes map[string]*Transport
}

func NewNetwork() *Network {
	return &Network{nodes: make(map[string]*Transport)}
}

// Transport is a Network-registered endpoint.
type Transport struct {
	network *Network
	addr    string

	mu       sync.Mutex
	onMsg    func(from string, payload []byte)
	started  bool
	stopped  bool
	inbox    chan message
	doneCh   chan struct{}
}

type message struct {
	from    string
	payload []byte
}

// New registers a new Transport at addr on network. addr must be unique
// within network; registering a second Transport at the same addr
// replaces the first.
func New(network *Network, addr string) *Transport {
	t := &Transport{
		network: network,
		addr:    addr,
		inbox:   make(chan message, 64),
		doneCh:  make(chan struct{}),
	}
	network.mu.Lock()
	network.nodes[addr] = t
	network.mu.Unlock()
	return t
}

func (t *Transport) SetOnMessage(fn func(from string, payload []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMsg = fn
}

func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	onMsg := t.onMsg
	t.mu.Unlock()

	go func() {
		for {
			select {
			case m := <-t.inbox:
				if onMsg != nil {
					onMsg(m.from, m.payload)
				}
			case <-t.doneCh:
				return
			}
		}
	}()
	return nil
}

func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return nil
	}
	t.stopped = true
	close(t.doneCh)
	t.network.mu.Lock()
	delete(t.network.nodes, t.addr)
	t.network.mu.Unlock()
	return nil
}

// Send delivers payload to addr's inbox. It returns corerr.ErrSendFailed
// if addr is not currently registered on the same network.
func (t *Transport) Send(ctx context.Context, addr string, payload []byte) error {
	t.network.mu.RLock()
	peer, ok := t.network.nodes[addr]
	t.network.mu.RUnlock()
	if !ok {
		return corerr.ErrSendFailed
	}

	cp := append([]byte(nil), payload...)
	select {
	case peer.inbox <- message{from: t.addr, payload: cp}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
