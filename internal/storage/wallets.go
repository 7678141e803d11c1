package storage

import (
	"fmt"
	"sort"

	"go.etcd.io/bbolt"
	"gillean.network/gillean/internal/nodeerrors"
)

// SaveWallet persists an encrypted keystore blob under address. The
// blob's contents (cipher, KDF params, ciphertext) are internal/wallet's
// concern; storage only keys and stores bytes.
func (s *Store) SaveWallet(address string, keystore []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketWallets).Put([]byte(address), keystore)
	})
}

// LoadWallet reads the keystore blob for address, or (nil, false, nil)
// if none is stored.
func (s *Store) LoadWallet(address string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketWallets).Get([]byte(address))
		if data == nil {
			return nil
		}
		out = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: load wallet %s: %v", nodeerrors.ErrStorageError, address, err)
	}
	return out, out != nil, nil
}

// ListWallets returns every stored address, sorted.
func (s *Store) ListWallets() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var addrs []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketWallets).ForEach(func(k, _ []byte) error {
			addrs = append(addrs, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list wallets: %v", nodeerrors.ErrStorageError, err)
	}
	sort.Strings(addrs)
	return addrs, nil
}
