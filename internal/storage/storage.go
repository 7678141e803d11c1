// Package storage persists the chain's blocks, pending transactions,
// balances, wallets, and metadata to a single embedded database, and
// provides integrity checking and backup/restore, per §4.7.
//
// Grounded on original_source/src/storage.rs's BlockchainStorage
// (named "trees" for each kind of record, version-gated metadata,
// integrity checksum, Full/Incremental/Differential backups) and the
// teacher's mutex-guarded-struct idiom, implemented over
// go.etcd.io/bbolt instead of sled: Bolt's buckets play the role of
// sled's trees, and (*bbolt.Tx).CopyFile replaces sled's tree-by-tree
// copy for backups.
package storage

import (
	"fmt"
	"os"
	"sync"

	"go.etcd.io/bbolt"
	"gillean.network/gillean/internal/nodeerrors"
)

// FormatVersion is the on-disk format version stamped into the
// metadata bucket. A mismatch on load is a VersionMismatchError with
// no migration path (§4.7, §7).
const FormatVersion = "1.0.0"

// Bucket names, the Go-native equivalent of storage.rs's sled trees.
var (
	bucketBlocks       = []byte("blocks")
	bucketTransactions = []byte("transactions")
	bucketBalances     = []byte("balances")
	bucketMetadata     = []byte("metadata")
	bucketWallets      = []byte("wallets")
	bucketBackups      = []byte("backups")
	bucketIntegrity    = []byte("integrity")
)

var allBuckets = [][]byte{
	bucketBlocks, bucketTransactions, bucketBalances,
	bucketMetadata, bucketWallets, bucketBackups, bucketIntegrity,
}

// Store wraps a bbolt database with the named buckets of §3/§6, plus
// the backup directory backups are written under.
type Store struct {
	mu        sync.Mutex
	db        *bbolt.DB
	path      string
	backupDir string
	lastCheck *IntegrityCheckResult
}

// Open opens (creating if necessary) the database at path, ensures
// every named bucket exists, and returns a ready Store. backupDir
// defaults to path+".backups" when empty.
func Open(path string, backupDir string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", nodeerrors.ErrStorageError, path, err)
	}
	if backupDir == "" {
		backupDir = path + ".backups"
	}
	s := &Store{db: db, path: path, backupDir: backupDir}
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: initialize buckets: %v", nodeerrors.ErrStorageError, err)
	}
	if err := s.ensureVersion(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenReadOnly opens an existing database at path without taking
// bbolt's exclusive write lock, so a second process (the `status` CLI
// command) can inspect a node's data directory while that node is
// running. It never creates the file or its buckets and never writes
// a version stamp; a missing database or a version mismatch is
// reported as an error rather than silently repaired.
func OpenReadOnly(path string, backupDir string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s read-only: %v", nodeerrors.ErrStorageError, path, err)
	}
	if backupDir == "" {
		backupDir = path + ".backups"
	}
	s := &Store{db: db, path: path, backupDir: backupDir}
	meta, err := s.LoadMetadata()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if meta.Version != "" && meta.Version != FormatVersion {
		_ = db.Close()
		return nil, &nodeerrors.VersionMismatchError{Expected: FormatVersion, Got: meta.Version}
	}
	return s, nil
}

// ensureVersion stamps FormatVersion into metadata on first open, or
// verifies it matches on subsequent opens.
func (s *Store) ensureVersion() error {
	meta, err := s.LoadMetadata()
	if err != nil {
		return err
	}
	if meta.Version == "" {
		meta.Version = FormatVersion
		return s.SaveMetadata(meta)
	}
	if meta.Version != FormatVersion {
		return &nodeerrors.VersionMismatchError{Expected: FormatVersion, Got: meta.Version}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", nodeerrors.ErrStorageError, err)
	}
	return nil
}

// Flush forces a sync of pending writes to disk. bbolt commits
// synchronously by default, so this is a no-op kept for parity with
// storage.rs's explicit flush() call sequence.
func (s *Store) Flush() error { return nil }

// Size returns the on-disk database file size in bytes.
func (s *Store) Size() (int64, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		return 0, fmt.Errorf("%w: size: %v", nodeerrors.ErrStorageError, err)
	}
	return fi.Size(), nil
}
