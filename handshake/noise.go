package handshake

import (
	"fmt"

	"github.com/flynn/noise"
	"golang.org/x/crypto/curve25519"
)

// noisePrologue is authenticated by every Noise handshake this package
// drives; it is never transmitted separately, only mixed into the
// transcript hash (spec §6).
var noisePrologue = []byte("CABLE")

// cipherSuite returns Noise_XXpsk0_25519_ChaChaPoly_BLAKE2b's suite; a
// fresh value is built for each handshake state.
func cipherSuite() noise.CipherSuite {
	return noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2b)
}

// derivePublic computes the X25519 public key for a raw 32-byte scalar.
func derivePublic(private [32]byte) ([]byte, error) {
	pub, err := curve25519.X25519(private[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("handshake: derive public key: %w", err)
	}
	return pub, nil
}

// buildHandshakeState constructs the Noise XX-psk0 machine for one side.
// Every flynn/noise call that drives the handshake lives in this file;
// handshake.go only calls writeNoiseMessage/readNoiseMessage/intoTransport
// below, and otherwise just holds noise.HandshakeState and
// noise.CipherState values and calls CipherState.Encrypt/Decrypt in
// Complete. Substituting a different Noise implementation touches this
// file and those type uses in handshake.go (spec §9).
func buildHandshakeState(initiator bool, private, psk [32]byte) (*noise.HandshakeState, error) {
	pub, err := derivePublic(private)
	if err != nil {
		return nil, err
	}
	cfg := noise.Config{
		CipherSuite: cipherSuite(),
		Pattern:     noise.HandshakeXX,
		Initiator:   initiator,
		StaticKeypair: noise.DHKey{
			Private: append([]byte(nil), private[:]...),
			Public:  pub,
		},
		Prologue:              noisePrologue,
		PresharedKey:          append([]byte(nil), psk[:]...),
		PresharedKeyPlacement: 0, // psk0: mixed in before the first handshake message.
	}
	hs, err := noise.NewHandshakeState(cfg)
	if err != nil {
		return nil, fmt.Errorf("handshake: build noise state: %w", err)
	}
	return hs, nil
}

// writeNoiseMessage writes the next handshake message (empty payload —
// this protocol carries no application data during the handshake itself)
// into dst and returns the byte count. When the handshake's final
// message has just been written, cs1/cs2 are non-nil transport cipher
// states handed to intoTransport.
func writeNoiseMessage(hs *noise.HandshakeState, dst []byte) (int, *noise.CipherState, *noise.CipherState, error) {
	out, cs1, cs2, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: %v", ErrTransportError, err)
	}
	if len(dst) < len(out) {
		return 0, nil, nil, fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, len(out), len(dst))
	}
	n := copy(dst, out)
	return n, cs1, cs2, nil
}

// readNoiseMessage reads and processes one handshake message from src.
func readNoiseMessage(hs *noise.HandshakeState, src []byte) (*noise.CipherState, *noise.CipherState, error) {
	_, cs1, cs2, err := hs.ReadMessage(nil, src)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrTransportError, err)
	}
	return cs1, cs2, nil
}

// intoTransport selects the encrypt/decrypt cipher states for role, per
// the flynn/noise convention that cs1 is initiator->responder and cs2 is
// responder->initiator.
func intoTransport(initiator bool, cs1, cs2 *noise.CipherState) (encrypt, decrypt *noise.CipherState) {
	if initiator {
		return cs1, cs2
	}
	return cs2, cs1
}
