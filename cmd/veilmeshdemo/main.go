// Command veilmeshdemo runs two devices, Alice and Bob, through X3DH key
// agreement and a Double-Ratchet exchange over an in-process transport.
package main

import (
	"context"
	"log"
	"time"

	"github.com/veilmesh/core/dispatcher"
	"github.com/veilmesh/core/identity"
	"github.com/veilmesh/core/transport/memtransport"
	"github.com/veilmesh/core/x3dh"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice, err := identity.NewBundle()
	if err != nil {
		log.Fatalf("alice identity: %v", err)
	}
	bob, err := identity.NewBundle()
	if err != nil {
		log.Fatalf("bob identity: %v", err)
	}
	if _, err := bob.AddOneTimePrekeys(1); err != nil {
		log.Fatalf("bob prekeys: %v", err)
	}

	bobBundle, err := bob.PublicBundle(true)
	if err != nil {
		log.Fatalf("bob bundle: %v", err)
	}

	rootAlice, initMsg, err := x3dh.InitiatorAgree(alice.IK, bobBundle, true)
	if err != nil {
		log.Fatalf("x3dh initiator: %v", err)
	}
	rootBob, err := x3dh.ResponderAgree(bob, initMsg)
	if err != nil {
		log.Fatalf("x3dh responder: %v", err)
	}
	var rootAliceArr, rootBobArr [32]byte
	copy(rootAliceArr[:], rootAlice)
	copy(rootBobArr[:], rootBob)
	// X3DH has now given both devices the same root key without either
	// learning the other's ratchet public key: that only happens once a
	// message actually crosses the wire and carries it in the header.

	net := memtransport.NewNetwork()
	trAlice := memtransport.New(net, "alice")
	trBob := memtransport.New(net, "bob")

	dAlice := dispatcher.New(trAlice)
	dBob := dispatcher.New(trBob)
	if err := dAlice.RegisterDevice(alice.DeviceID()); err != nil {
		log.Fatalf("alice register device: %v", err)
	}
	if err := dBob.RegisterDevice(bob.DeviceID()); err != nil {
		log.Fatalf("bob register device: %v", err)
	}

	if err := dAlice.Start(ctx); err != nil {
		log.Fatalf("alice start: %v", err)
	}
	if err := dBob.Start(ctx); err != nil {
		log.Fatalf("bob start: %v", err)
	}
	defer dAlice.Stop()
	defer dBob.Stop()

	dAlice.RegisterPeerAddress(bob.DeviceID(), "bob")
	dBob.RegisterPeerAddress(alice.DeviceID(), "alice")

	if err := dAlice.CreateSessionWith(bob.DeviceID(), rootAliceArr); err != nil {
		log.Fatalf("alice create session: %v", err)
	}
	if err := dBob.CreateSessionWith(alice.DeviceID(), rootBobArr); err != nil {
		log.Fatalf("bob create session: %v", err)
	}

	bobDone := make(chan struct{})
	dBob.SetOnInbound(func(from identity.DeviceID, plaintext []byte) {
		log.Printf("bob received from %s: %q", from, plaintext)
		close(bobDone)
	})

	if err := dAlice.Send(ctx, bob.DeviceID(), []byte("hello bob, this is alice")); err != nil {
		log.Fatalf("alice send: %v", err)
	}

	select {
	case <-bobDone:
	case <-ctx.Done():
		log.Fatalf("timed out waiting for bob to receive the message")
	}

	aliceDone := make(chan struct{})
	dAlice.SetOnInbound(func(from identity.DeviceID, plaintext []byte) {
		log.Printf("alice received from %s: %q", from, plaintext)
		close(aliceDone)
	})

	// Bob's reply is what lets Alice observe Bob's ratchet public key for
	// the first time; only after that can she actively rekey against it.
	if err := dBob.Send(ctx, alice.DeviceID(), []byte("hi alice, bob here")); err != nil {
		log.Fatalf("bob send: %v", err)
	}
	select {
	case <-aliceDone:
	case <-ctx.Done():
		log.Fatalf("timed out waiting for alice to receive bob's reply")
	}

	if err := dAlice.RotateSession(bob.DeviceID()); err != nil {
		log.Fatalf("alice rotate session: %v", err)
	}
	bobRotatedDone := make(chan struct{})
	dBob.SetOnInbound(func(from identity.DeviceID, plaintext []byte) {
		log.Printf("bob received post-rotation message from %s: %q", from, plaintext)
		close(bobRotatedDone)
	})
	if err := dAlice.Send(ctx, bob.DeviceID(), []byte("forward secrecy engaged")); err != nil {
		log.Fatalf("alice send after rotate: %v", err)
	}

	select {
	case <-bobRotatedDone:
		log.Printf("exchange complete; alice stats: %+v, bob stats: %+v", dAlice.Stats(), dBob.Stats())
	case <-ctx.Done():
		log.Fatalf("timed out waiting for bob's post-rotation message")
	}
}
