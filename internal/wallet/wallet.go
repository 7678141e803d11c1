// Package wallet implements encrypted keypair storage: an address's
// Ed25519 private key is never persisted in the clear, only as an
// AES-256-GCM ciphertext under a key derived from the wallet's
// passphrase (§3, §4.1, §4.9 supplemented feature — the original spec
// is silent on wallet-at-rest protection, but every production chain
// client in the example pack encrypts its keystore, and the teacher's
// own internal/wallet package was left as a stub naming exactly this
// responsibility).
package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"gillean.network/gillean/internal/crypto"
	"gillean.network/gillean/internal/nodeerrors"
)

// Keystore is the on-disk (and on-wire, for import/export) encrypted
// representation of one address's signing key.
type Keystore struct {
	Address    string         `json:"address"`
	PublicKey  []byte         `json:"public_key"`
	KDF        crypto.KDFKind `json:"kdf"`
	Salt       []byte         `json:"salt"`
	Iterations int            `json:"iterations"`
	Nonce      []byte         `json:"nonce"`
	Ciphertext []byte         `json:"ciphertext"`
}

// pbkdf2Iterations is the iteration count seal uses for the PBKDF2 KDF,
// twice crypto.DeriveFromPassword's 100,000-iteration floor.
const pbkdf2Iterations = 200_000

// Wallet holds a decrypted keypair in memory, ready to sign.
type Wallet struct {
	Address    string
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
}

// Generate creates a fresh keypair and encrypts it under password using
// kdf, returning both the unlocked Wallet and its persistable Keystore.
func Generate(password string, kdf crypto.KDFKind) (*Wallet, *Keystore, error) {
	sk, pk, err := crypto.GenerateKeypair()
	if err != nil {
		return nil, nil, err
	}
	addr, err := crypto.AddressFromPublicKey(pk)
	if err != nil {
		return nil, nil, err
	}
	ks, err := seal(addr, pk, sk, password, kdf)
	if err != nil {
		return nil, nil, err
	}
	return &Wallet{Address: addr, PrivateKey: sk, PublicKey: pk}, ks, nil
}

// seal encrypts sk under a key derived from password, producing a Keystore.
func seal(address string, pk ed25519.PublicKey, sk ed25519.PrivateKey, password string, kdf crypto.KDFKind) (*Keystore, error) {
	iterations := 0
	if kdf == crypto.KDFPBKDF2HMACSHA256 {
		iterations = pbkdf2Iterations
	}
	key, salt, err := crypto.DeriveFromPassword(password, nil, kdf, iterations)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: init cipher: %v", nodeerrors.ErrInvalidInput, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: init GCM: %v", nodeerrors.ErrInvalidInput, err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: generate nonce: %v", nodeerrors.ErrInvalidInput, err)
	}
	ciphertext := gcm.Seal(nil, nonce, sk, []byte(address))

	return &Keystore{
		Address:    address,
		PublicKey:  append([]byte(nil), pk...),
		KDF:        kdf,
		Salt:       salt,
		Iterations: iterations,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}, nil
}

// Unlock decrypts ks with password, returning a ready-to-sign Wallet.
// A wrong password surfaces as an authentication failure from AES-GCM,
// not a distinguishable error, so callers cannot brute-force-detect
// "wrong KDF" versus "wrong password" from the error alone.
func Unlock(ks *Keystore, password string) (*Wallet, error) {
	key, _, err := crypto.DeriveFromPassword(password, ks.Salt, ks.KDF, ks.Iterations)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: init cipher: %v", nodeerrors.ErrInvalidInput, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: init GCM: %v", nodeerrors.ErrInvalidInput, err)
	}
	if len(ks.Nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: keystore nonce has wrong length", nodeerrors.ErrInvalidInput)
	}
	sk, err := gcm.Open(nil, ks.Nonce, ks.Ciphertext, []byte(ks.Address))
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt keystore: incorrect password or corrupted data", nodeerrors.ErrInvalidInput)
	}
	return &Wallet{
		Address:    ks.Address,
		PrivateKey: ed25519.PrivateKey(sk),
		PublicKey:  ed25519.PublicKey(append([]byte(nil), ks.PublicKey...)),
	}, nil
}

// Marshal serializes a Keystore to the JSON form storage.Store persists.
func (ks *Keystore) Marshal() ([]byte, error) {
	data, err := json.Marshal(ks)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal keystore: %v", nodeerrors.ErrInvalidInput, err)
	}
	return data, nil
}

// UnmarshalKeystore parses the JSON form storage.Store returns.
func UnmarshalKeystore(data []byte) (*Keystore, error) {
	ks := &Keystore{}
	if err := json.Unmarshal(data, ks); err != nil {
		return nil, fmt.Errorf("%w: unmarshal keystore: %v", nodeerrors.ErrInvalidInput, err)
	}
	return ks, nil
}
