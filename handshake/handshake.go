// Package handshake drives the Noise_XXpsk0_25519_ChaChaPoly_BLAKE2b
// handshake as a linear sequence of single-use steps. Each step is its
// own type; its one method consumes the step and returns the next one,
// so a caller can only ever drive the handshake forward in the one
// order the protocol allows (spec §4, §9). The initiator and responder
// each get their own progression since the two sides never do the same
// thing in the same order.
package handshake

import (
	"fmt"

	"github.com/flynn/noise"
	"github.com/rs/zerolog/log"

	"github.com/cabled/cable/internal/zeroize"
	"github.com/cabled/cable/version"
)

// Wire sizes for Noise_XXpsk0_25519_ChaChaPoly_BLAKE2b. PSK placement 0
// mixes the preshared key in before the first message, so even the
// empty payload on message one is AEAD-sealed; every Noise message below
// therefore carries a 16-byte tag in addition to its DH material. The
// version message is plain bytes.
const (
	VersionMessageLen            = 2  // major, minor
	EphemeralMessageLen          = 48 // e (32) + sealed empty payload (16)
	EphemeralAndStaticMessageLen = 96 // e (32) + sealed s (48) + sealed empty payload (16)
	StaticMessageLen             = 64 // sealed s (48) + sealed empty payload (16)

	// MaxHandshakeMessageLen is the largest single message either side
	// ever writes or reads; a caller sizing one reusable scratch buffer
	// needs at least this many bytes.
	MaxHandshakeMessageLen = EphemeralAndStaticMessageLen
)

// Config carries the local identity both progressions are built from.
type Config struct {
	// LocalVersion is advertised to the peer and, for an initiator,
	// checked against the peer's advertised major version.
	LocalVersion version.Version
	// PSK is the out-of-band preshared secret both sides already share.
	PSK [32]byte
	// PrivateKey is the raw 32-byte Curve25519 static scalar.
	PrivateKey [32]byte
}

// Complete is the terminal state of either progression: a working
// transport able to encrypt outbound and decrypt inbound application
// messages.
type Complete struct {
	encrypt *noise.CipherState
	decrypt *noise.CipherState
}

// Encrypt seals plaintext, appending the ciphertext to out.
func (c *Complete) Encrypt(out, plaintext []byte) ([]byte, error) {
	ct, err := c.encrypt.Encrypt(out, nil, plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportError, err)
	}
	return ct, nil
}

// Decrypt opens ciphertext, appending the plaintext to out.
func (c *Complete) Decrypt(out, ciphertext []byte) ([]byte, error) {
	pt, err := c.decrypt.Decrypt(out, nil, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportError, err)
	}
	return pt, nil
}

// ---- initiator progression ----

// NewInitiator starts the client side of a handshake.
func NewInitiator(cfg Config) InitiatorSendVersion {
	return InitiatorSendVersion{cfg: cfg, g: newGuard()}
}

type InitiatorSendVersion struct {
	cfg Config
	g   *stageGuard
}

// Write places the initiator's version announcement into dst.
func (s InitiatorSendVersion) Write(dst []byte) (int, InitiatorRecvVersion, error) {
	if err := s.g.use(); err != nil {
		return 0, InitiatorRecvVersion{}, err
	}
	b := s.cfg.LocalVersion.ToBytes()
	if len(dst) < len(b) {
		return 0, InitiatorRecvVersion{}, fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, len(b), len(dst))
	}
	n := copy(dst, b[:])
	return n, InitiatorRecvVersion{cfg: s.cfg, g: newGuard()}, nil
}

type InitiatorRecvVersion struct {
	cfg Config
	g   *stageGuard
}

// Read parses the responder's version announcement. An incompatible
// major version is terminal for an initiator.
func (s InitiatorRecvVersion) Read(src []byte) (InitiatorBuildNoise, error) {
	if err := s.g.use(); err != nil {
		return InitiatorBuildNoise{}, err
	}
	_, remote, err := version.FromBytes(src)
	if err != nil {
		return InitiatorBuildNoise{}, fmt.Errorf("handshake: read server version: %w", err)
	}
	if remote.Major != s.cfg.LocalVersion.Major {
		return InitiatorBuildNoise{}, fmt.Errorf("%w: local=%s remote=%s", ErrIncompatibleServerVersion, s.cfg.LocalVersion, remote)
	}
	return InitiatorBuildNoise{cfg: s.cfg, g: newGuard()}, nil
}

type InitiatorBuildNoise struct {
	cfg Config
	g   *stageGuard
}

// Build constructs the underlying Noise initiator state. The PSK and
// private key from s.cfg are only needed to derive hs; once that is
// done, this stage's own copy of them is wiped. This never touches the
// caller's original Config, which this package never mutates (spec §5).
func (s InitiatorBuildNoise) Build() (InitiatorSendEphemeralKey, error) {
	if err := s.g.use(); err != nil {
		return InitiatorSendEphemeralKey{}, err
	}
	hs, err := buildHandshakeState(true, s.cfg.PrivateKey, s.cfg.PSK)
	zeroize.Bytes(s.cfg.PrivateKey[:])
	zeroize.Bytes(s.cfg.PSK[:])
	if err != nil {
		return InitiatorSendEphemeralKey{}, err
	}
	return InitiatorSendEphemeralKey{hs: hs, g: newGuard()}, nil
}

type InitiatorSendEphemeralKey struct {
	hs *noise.HandshakeState
	g  *stageGuard
}

// Write sends Noise message 1: "e".
func (s InitiatorSendEphemeralKey) Write(dst []byte) (int, InitiatorRecvEphemeralAndStaticKeys, error) {
	if err := s.g.use(); err != nil {
		return 0, InitiatorRecvEphemeralAndStaticKeys{}, err
	}
	n, _, _, err := writeNoiseMessage(s.hs, dst)
	if err != nil {
		return 0, InitiatorRecvEphemeralAndStaticKeys{}, err
	}
	return n, InitiatorRecvEphemeralAndStaticKeys{hs: s.hs, g: newGuard()}, nil
}

type InitiatorRecvEphemeralAndStaticKeys struct {
	hs *noise.HandshakeState
	g  *stageGuard
}

// Read processes Noise message 2: "e, ee, s, es".
func (s InitiatorRecvEphemeralAndStaticKeys) Read(src []byte) (InitiatorSendStaticKey, error) {
	if err := s.g.use(); err != nil {
		return InitiatorSendStaticKey{}, err
	}
	if _, _, err := readNoiseMessage(s.hs, src); err != nil {
		return InitiatorSendStaticKey{}, err
	}
	return InitiatorSendStaticKey{hs: s.hs, g: newGuard()}, nil
}

type InitiatorSendStaticKey struct {
	hs *noise.HandshakeState
	g  *stageGuard
}

// Write sends Noise message 3: "s, se", the handshake's final message.
func (s InitiatorSendStaticKey) Write(dst []byte) (int, InitiatorInitTransport, error) {
	if err := s.g.use(); err != nil {
		return 0, InitiatorInitTransport{}, err
	}
	n, cs1, cs2, err := writeNoiseMessage(s.hs, dst)
	if err != nil {
		return 0, InitiatorInitTransport{}, err
	}
	return n, InitiatorInitTransport{cs1: cs1, cs2: cs2, g: newGuard()}, nil
}

type InitiatorInitTransport struct {
	cs1, cs2 *noise.CipherState
	g        *stageGuard
}

// Complete derives the transport cipher states, ending the progression.
func (s InitiatorInitTransport) Complete() (Complete, error) {
	if err := s.g.use(); err != nil {
		return Complete{}, err
	}
	encrypt, decrypt := intoTransport(true, s.cs1, s.cs2)
	return Complete{encrypt: encrypt, decrypt: decrypt}, nil
}

// ---- responder progression ----

// NewResponder starts the server side of a handshake.
func NewResponder(cfg Config) ResponderRecvVersion {
	return ResponderRecvVersion{cfg: cfg, g: newGuard()}
}

type ResponderRecvVersion struct {
	cfg Config
	g   *stageGuard
}

// Read parses the initiator's version announcement. A mismatched major
// version is logged and otherwise ignored: a responder never refuses a
// connection over version skew (spec §4.6).
func (s ResponderRecvVersion) Read(src []byte) (ResponderSendVersion, error) {
	if err := s.g.use(); err != nil {
		return ResponderSendVersion{}, err
	}
	_, remote, err := version.FromBytes(src)
	if err != nil {
		return ResponderSendVersion{}, fmt.Errorf("handshake: read client version: %w", err)
	}
	if remote.Major != s.cfg.LocalVersion.Major {
		log.Warn().
			Str("local_version", s.cfg.LocalVersion.String()).
			Str("remote_version", remote.String()).
			Msg("handshake: client advertised an incompatible major version, continuing anyway")
	}
	return ResponderSendVersion{cfg: s.cfg, g: newGuard()}, nil
}

type ResponderSendVersion struct {
	cfg Config
	g   *stageGuard
}

// Write places the responder's version announcement into dst.
func (s ResponderSendVersion) Write(dst []byte) (int, ResponderBuildNoise, error) {
	if err := s.g.use(); err != nil {
		return 0, ResponderBuildNoise{}, err
	}
	b := s.cfg.LocalVersion.ToBytes()
	if len(dst) < len(b) {
		return 0, ResponderBuildNoise{}, fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, len(b), len(dst))
	}
	n := copy(dst, b[:])
	return n, ResponderBuildNoise{cfg: s.cfg, g: newGuard()}, nil
}

type ResponderBuildNoise struct {
	cfg Config
	g   *stageGuard
}

// Build constructs the underlying Noise responder state. See
// InitiatorBuildNoise.Build for why wiping s.cfg here is safe.
func (s ResponderBuildNoise) Build() (ResponderRecvEphemeralKey, error) {
	if err := s.g.use(); err != nil {
		return ResponderRecvEphemeralKey{}, err
	}
	hs, err := buildHandshakeState(false, s.cfg.PrivateKey, s.cfg.PSK)
	zeroize.Bytes(s.cfg.PrivateKey[:])
	zeroize.Bytes(s.cfg.PSK[:])
	if err != nil {
		return ResponderRecvEphemeralKey{}, err
	}
	return ResponderRecvEphemeralKey{hs: hs, g: newGuard()}, nil
}

type ResponderRecvEphemeralKey struct {
	hs *noise.HandshakeState
	g  *stageGuard
}

// Read processes Noise message 1: "e".
func (s ResponderRecvEphemeralKey) Read(src []byte) (ResponderSendEphemeralAndStaticKeys, error) {
	if err := s.g.use(); err != nil {
		return ResponderSendEphemeralAndStaticKeys{}, err
	}
	if _, _, err := readNoiseMessage(s.hs, src); err != nil {
		return ResponderSendEphemeralAndStaticKeys{}, err
	}
	return ResponderSendEphemeralAndStaticKeys{hs: s.hs, g: newGuard()}, nil
}

type ResponderSendEphemeralAndStaticKeys struct {
	hs *noise.HandshakeState
	g  *stageGuard
}

// Write sends Noise message 2: "e, ee, s, es".
func (s ResponderSendEphemeralAndStaticKeys) Write(dst []byte) (int, ResponderRecvStaticKey, error) {
	if err := s.g.use(); err != nil {
		return 0, ResponderRecvStaticKey{}, err
	}
	n, _, _, err := writeNoiseMessage(s.hs, dst)
	if err != nil {
		return 0, ResponderRecvStaticKey{}, err
	}
	return n, ResponderRecvStaticKey{hs: s.hs, g: newGuard()}, nil
}

type ResponderRecvStaticKey struct {
	hs *noise.HandshakeState
	g  *stageGuard
}

// Read processes Noise message 3: "s, se", the handshake's final message.
func (s ResponderRecvStaticKey) Read(src []byte) (ResponderInitTransport, error) {
	if err := s.g.use(); err != nil {
		return ResponderInitTransport{}, err
	}
	cs1, cs2, err := readNoiseMessage(s.hs, src)
	if err != nil {
		return ResponderInitTransport{}, err
	}
	return ResponderInitTransport{cs1: cs1, cs2: cs2, g: newGuard()}, nil
}

type ResponderInitTransport struct {
	cs1, cs2 *noise.CipherState
	g        *stageGuard
}

// Complete derives the transport cipher states, ending the progression.
func (s ResponderInitTransport) Complete() (Complete, error) {
	if err := s.g.use(); err != nil {
		return Complete{}, err
	}
	encrypt, decrypt := intoTransport(false, s.cs1, s.cs2)
	return Complete{encrypt: encrypt, decrypt: decrypt}, nil
}
