// Package crypto implements the Ed25519 keypair, password-based key
// derivation, and address-derivation primitives of §4.1. It deliberately
// has no side effects and returns structured errors for every
// input-validation failure, mirroring the defensive style the teacher
// repo applies throughout internal/core/types.
package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"gillean.network/gillean/internal/nodeerrors"
)

// SignatureSize is the length in bytes of an Ed25519 signature.
const SignatureSize = ed25519.SignatureSize

// AddressPrefix is prepended to every derived address (§6).
const AddressPrefix = "GIL"

// GenerateKeypair produces a new Ed25519 private/public keypair from a
// cryptographically seeded RNG, rejecting the (vanishingly unlikely)
// all-zero output as a sanity check against a broken entropy source.
func GenerateKeypair() (ed25519.PrivateKey, ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: keypair generation failed: %v", nodeerrors.ErrInvalidInput, err)
	}
	if isAllZero(priv) || isAllZero(pub) {
		return nil, nil, fmt.Errorf("%w: generated keypair is all-zero", nodeerrors.ErrInvalidInput)
	}
	return priv, pub, nil
}

func isAllZero(b []byte) bool {
	return bytes.Equal(b, make([]byte, len(b)))
}

// Sign signs msg with sk, returning a 64-byte Ed25519 signature.
func Sign(sk ed25519.PrivateKey, msg []byte) ([]byte, error) {
	if len(sk) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key has invalid length %d", nodeerrors.ErrInvalidInput, len(sk))
	}
	return ed25519.Sign(sk, msg), nil
}

// Verify reports whether sig is a valid Ed25519 signature of msg under pk.
func Verify(pk ed25519.PublicKey, msg, sig []byte) bool {
	if len(pk) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pk, msg, sig)
}

// AddressFromPublicKey derives an address as "GIL" || hex(sha256(hex(pubkey)))[:40],
// exactly per §6.
func AddressFromPublicKey(pk ed25519.PublicKey) (string, error) {
	if len(pk) != ed25519.PublicKeySize {
		return "", fmt.Errorf("%w: public key has invalid length %d", nodeerrors.ErrInvalidInput, len(pk))
	}
	pkHex := hex.EncodeToString(pk)
	sum := sha256.Sum256([]byte(pkHex))
	digest := hex.EncodeToString(sum[:])
	return AddressPrefix + digest[:40], nil
}
