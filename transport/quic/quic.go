// Package quic implements transport.Transport over QUIC, using a
// self-signed certificate: peer authenticity is established at the
// session/ratchet layer (via X3DH and the Double Ratchet), never by the
// TLS handshake, so certificate verification is intentionally skipped
// here.
package quic

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"io"
	"math/big"
	"sync"
	"time"

	q "github.com/quic-go/quic-go"

	"github.com/veilmesh/core/corerr"
	"github.com/veilmesh/core/wire"
)

// ALPN identifies this protocol during the QUIC/TLS handshake.
const ALPN = "veilmesh/1"

// maxPayload bounds a single framed payload read off a stream.
const maxPayload = 1 << 22 // 4 MiB

var ErrClosed = errors.New("quic: transport closed")

func selfSignedTLSConfig() (*tls.Config, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return nil, err
	}
	tpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "veilmesh"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &tpl, &tpl, pub, priv)
	if err != nil {
		return nil, err
	}
	cert := tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}
	return &tls.Config{
		Certificates:       []tls.Certificate{cert},
		MinVersion:         tls.VersionTLS13,
		NextProtos:         []string{ALPN},
		InsecureSkipVerify: true,
	}, nil
}

// Transport is a QUIC-backed transport.Transport. A single Transport can
// both listen for inbound connections (if ListenAddr is set) and dial
// outbound connections on demand from Send.
type Transport struct {
	ListenAddr string

	mu        sync.Mutex
	onMsg     func(from string, payload []byte)
	listener  *q.Listener
	conns     map[string]q.Connection
	cancel    context.CancelFunc
	closed    bool
}

func New(listenAddr string) *Transport {
	return &Transport{ListenAddr: listenAddr, conns: make(map[string]q.Connection)}
}

func (t *Transport) SetOnMessage(fn func(from string, payload []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMsg = fn
}

// Start opens the listener (if ListenAddr is non-empty) and begins
// accepting connections in the background.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.ListenAddr == "" {
		t.mu.Unlock()
		return nil
	}
	tlsConf, err := selfSignedTLSConfig()
	if err != nil {
		t.mu.Unlock()
		return err
	}
	ln, err := q.ListenAddr(t.ListenAddr, tlsConf, &q.Config{})
	if err != nil {
		t.mu.Unlock()
		return err
	}
	t.listener = ln
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	go t.acceptLoop(runCtx)
	return nil
}

func (t *Transport) acceptLoop(ctx context.Context) {
	for {
		conn, err := t.listener.Accept(ctx)
		if err != nil {
			return
		}
		go t.readConn(ctx, conn)
	}
}

func (t *Transport) readConn(ctx context.Context, conn q.Connection) {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go t.readStream(conn.RemoteAddr().String(), stream)
	}
}

func (t *Transport) readStream(from string, stream q.Stream) {
	defer stream.Close()
	payload, err := readFrame(stream)
	if err != nil {
		return
	}
	t.mu.Lock()
	onMsg := t.onMsg
	t.mu.Unlock()
	if onMsg != nil {
		onMsg(from, payload)
	}
}

// Stop cancels the accept loop and closes the listener and every
// outbound connection this transport opened.
func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.cancel != nil {
		t.cancel()
	}
	if t.listener != nil {
		t.listener.Close()
	}
	for addr, c := range t.conns {
		c.CloseWithError(0, "")
		delete(t.conns, addr)
	}
	return nil
}

// Send dials addr (reusing a cached connection if one is open), opens a
// fresh stream, and writes payload as a single length-prefixed frame.
func (t *Transport) Send(ctx context.Context, addr string, payload []byte) error {
	conn, err := t.dial(ctx, addr)
	if err != nil {
		return corerr.ErrSendFailed
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		t.dropConn(addr)
		return corerr.ErrSendFailed
	}
	defer stream.Close()
	if err := writeFrame(stream, payload); err != nil {
		t.dropConn(addr)
		return corerr.ErrSendFailed
	}
	return nil
}

func (t *Transport) dial(ctx context.Context, addr string) (q.Connection, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	if c, ok := t.conns[addr]; ok {
		t.mu.Unlock()
		return c, nil
	}
	t.mu.Unlock()

	tlsConf, err := selfSignedTLSConfig()
	if err != nil {
		return nil, err
	}
	conn, err := q.DialAddr(ctx, addr, tlsConf, &q.Config{})
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.conns[addr] = conn
	t.mu.Unlock()
	go t.readConn(ctx, conn)
	return conn, nil
}

func (t *Transport) dropConn(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, addr)
}

func writeFrame(w io.Writer, payload []byte) error {
	buf := wire.PutUint32(make([]byte, 0, 4+len(payload)), uint32(len(payload)))
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	rd := wire.NewReader(lenBuf[:])
	n := rd.Uint32()
	if n > maxPayload {
		return nil, errors.New("quic: frame too large")
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
