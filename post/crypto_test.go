package post

import (
	"crypto/ed25519"
	"errors"
	"testing"
)

func TestSignThenVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var pk [32]byte
	copy(pk[:], pub)

	p := NewText(pk, nil, 1000, "general", "hello")
	if err := Sign(&p, priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	buf, err := ToBytes(&p)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if !Verify(buf) {
		t.Fatalf("expected signature to verify")
	}
}

func TestVerifyFailsOnTamperedSuffix(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var pk [32]byte
	copy(pk[:], pub)

	p := NewText(pk, nil, 1000, "general", "hello")
	if err := Sign(&p, priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	buf, err := ToBytes(&p)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if !Verify(buf) {
		t.Fatalf("precondition: expected signature to verify before tampering")
	}
	buf[len(buf)-1] ^= 0x01
	if Verify(buf) {
		t.Fatalf("expected verification to fail after flipping a bit in the signed suffix")
	}
}

func TestVerifyRejectsShortBuffer(t *testing.T) {
	if Verify(make([]byte, 95)) {
		t.Fatalf("expected Verify to reject a buffer shorter than 96 bytes")
	}
}

func TestVerifyRejectsBadSignatureForDifferentKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	otherPub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var pk [32]byte
	copy(pk[:], otherPub) // header claims a different public key than the signer

	p := NewText(pk, nil, 1000, "general", "hello")
	if err := Sign(&p, priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	buf, err := ToBytes(&p)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if Verify(buf) {
		t.Fatalf("expected Verify to fail when public_key does not match the signer")
	}
}

func TestHashDeterministic(t *testing.T) {
	var pk [32]byte
	p := NewText(pk, nil, 42, "general", "hi")
	h1, err := Hash(&p)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, err := Hash(&p)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("Hash is not deterministic: %x != %x", h1, h2)
	}

	other := NewText(pk, nil, 42, "general", "hi!")
	h3, err := Hash(&other)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 == h3 {
		t.Fatalf("expected different posts to hash differently")
	}
}

func TestSignRejectsWrongSizedKey(t *testing.T) {
	var pk [32]byte
	p := NewText(pk, nil, 1, "c", "t")
	if err := Sign(&p, make([]byte, 32)); err != ErrKeyDecodeError {
		t.Fatalf("expected ErrKeyDecodeError, got %v", err)
	}
}

func TestHashRejectsUnrecognizedPost(t *testing.T) {
	var pk [32]byte
	p := Post{
		Header: newHeader(pk, nil, 9999, 1),
		Body:   PostBody{Kind: 9999, Unrecognized: true},
	}
	if _, err := Hash(&p); !errors.Is(err, ErrUnrecognized) {
		t.Fatalf("expected ErrUnrecognized, got %v", err)
	}
}
