package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"

	"gillean.network/gillean/internal/nodeerrors"
)

// KDFKind selects the password-based key derivation algorithm (§4.1).
type KDFKind uint8

const (
	// KDFArgon2id is the memory-hard option.
	KDFArgon2id KDFKind = iota
	// KDFPBKDF2HMACSHA256 is the iterated HMAC-SHA256 option.
	KDFPBKDF2HMACSHA256
)

const (
	minSaltLen        = 16
	minPBKDF2Iterations = 100_000
	derivedKeyLen     = 32

	argon2Time    = 1
	argon2MemoryKiB = 64 * 1024
	argon2Threads = 4
)

// DeriveFromPassword derives a 32-byte key from password and salt using
// the requested KDF. If salt is nil, a fresh 16-byte salt is generated
// and returned alongside the key. iterations is only consulted for
// KDFPBKDF2HMACSHA256 and must be at least 100,000.
func DeriveFromPassword(password string, salt []byte, kdf KDFKind, iterations int) (key, usedSalt []byte, err error) {
	if password == "" {
		return nil, nil, fmt.Errorf("%w: password cannot be empty", nodeerrors.ErrInvalidInput)
	}
	if salt == nil {
		salt = make([]byte, minSaltLen)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, fmt.Errorf("%w: failed to generate salt: %v", nodeerrors.ErrInvalidInput, err)
		}
	}
	if len(salt) < minSaltLen {
		return nil, nil, fmt.Errorf("%w: salt must be at least %d bytes, got %d", nodeerrors.ErrInvalidInput, minSaltLen, len(salt))
	}

	switch kdf {
	case KDFArgon2id:
		key := argon2.IDKey([]byte(password), salt, argon2Time, argon2MemoryKiB, argon2Threads, derivedKeyLen)
		return key, salt, nil
	case KDFPBKDF2HMACSHA256:
		if iterations < minPBKDF2Iterations {
			return nil, nil, fmt.Errorf("%w: iterations must be at least %d, got %d", nodeerrors.ErrInvalidInput, minPBKDF2Iterations, iterations)
		}
		key := pbkdf2.Key([]byte(password), salt, iterations, derivedKeyLen, sha256.New)
		return key, salt, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown KDF kind %d", nodeerrors.ErrInvalidInput, kdf)
	}
}
