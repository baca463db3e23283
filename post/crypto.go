package post

import (
	"crypto/ed25519"
	"errors"

	"golang.org/x/crypto/blake2b"
)

// ErrHashError is returned by Hash only if the underlying digest
// primitive itself fails, which blake2b.New256 does not do for a fixed,
// valid output size — this exists so the contract matches spec §4.4
// rather than because it is reachable in practice.
var ErrHashError = errors.New("post: hash: digest primitive failed")

// ErrKeyDecodeError is returned by Sign when secretKey is not a valid
// 64-byte Ed25519 secret key.
var ErrKeyDecodeError = errors.New("post: sign: invalid secret key")

// signOffset is where the signed suffix of a serialized post begins:
// past the 32-byte public key and the 64-byte signature region.
const signOffset = publicKeyLen + signatureLen

// Hash returns the BLAKE2b-256 digest of p's full serialized bytes,
// including whatever is currently in the signature field. This is the
// only place a post's content hash is computed — spec §9 deliberately
// keeps no content-hash field inside Post itself, so every caller
// (Delete.Hashes entries, Links entries) must derive it the same way,
// from here. A post whose body is Unrecognized cannot be serialized, so
// Hash fails the same way ToBytes does — there is no header-only fallback.
func Hash(p *Post) (Hash, error) {
	buf, err := ToBytes(p)
	if err != nil {
		return Hash{}, err
	}
	return hashBytes(buf)
}

func hashBytes(buf []byte) (Hash, error) {
	d, err := blake2b.New256(nil)
	if err != nil {
		return Hash{}, ErrHashError
	}
	d.Write(buf)
	var h Hash
	copy(h[:], d.Sum(nil))
	return h, nil
}

// Sign serializes p (with whatever signature bytes are currently in the
// header, typically zero), computes an Ed25519 detached signature over
// the bytes from offset 96 onward, and stores the result in
// p.Header.Signature. secretKey must be the 64-byte libsodium-style
// encoding (seed || public key) — exactly what crypto/ed25519.PrivateKey
// already is, so no decoding step beyond a length check is needed.
func Sign(p *Post, secretKey []byte) error {
	if len(secretKey) != ed25519.PrivateKeySize {
		return ErrKeyDecodeError
	}
	buf, err := ToBytes(p)
	if err != nil {
		return err
	}
	sig := ed25519.Sign(ed25519.PrivateKey(secretKey), buf[signOffset:])
	copy(p.Header.Signature[:], sig)
	return nil
}

// Verify reports whether buf is a validly signed serialized post: it
// must be at least 96 bytes, bytes[0:32] must parse as an Ed25519 public
// key, bytes[32:96] as a signature, and the signature must verify over
// buf[96:]. Any parse or verification failure yields false. Verify does
// not allocate and does not decode the body — it is the cheap gate
// callers use before committing to a full decode.
func Verify(buf []byte) bool {
	if len(buf) < signOffset {
		return false
	}
	pub := ed25519.PublicKey(buf[:publicKeyLen])
	sig := buf[publicKeyLen:signOffset]
	return ed25519.Verify(pub, buf[signOffset:], sig)
}
