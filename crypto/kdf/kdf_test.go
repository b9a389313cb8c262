package kdf

import (
	"bytes"
	"testing"
)

func TestRootChainStepDeterministic(t *testing.T) {
	root := bytes.Repeat([]byte{0x01}, 32)
	shared := bytes.Repeat([]byte{0x02}, 32)

	root1, chain1, err := RootChainStep(root, shared)
	if err != nil {
		t.Fatalf("RootChainStep: %v", err)
	}
	root2, chain2, err := RootChainStep(root, shared)
	if err != nil {
		t.Fatalf("RootChainStep: %v", err)
	}

	if !bytes.Equal(root1, root2) || !bytes.Equal(chain1, chain2) {
		t.Fatalf("RootChainStep is not deterministic")
	}
	if bytes.Equal(root1, chain1) {
		t.Fatalf("new root key and chain key must differ")
	}
}

func TestAdvanceAndMessageKeyTagsDiffer(t *testing.T) {
	ck := bytes.Repeat([]byte{0xAB}, 32)
	next := AdvanceChainKey(ck)
	mk := MessageKey(ck)
	if bytes.Equal(next, mk) {
		t.Fatalf("chain-advance and message-key outputs must differ (domain separation)")
	}
}

func TestAdvanceChainKeyIsDeterministicAndChanges(t *testing.T) {
	ck := bytes.Repeat([]byte{0x05}, 32)
	next := AdvanceChainKey(ck)
	if bytes.Equal(next, ck) {
		t.Fatalf("advanced chain key must differ from input")
	}
	again := AdvanceChainKey(ck)
	if !bytes.Equal(next, again) {
		t.Fatalf("AdvanceChainKey must be deterministic")
	}
}
