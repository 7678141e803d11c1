package storage

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
	"gillean.network/gillean/internal/nodeerrors"
)

// Metadata mirrors storage.rs's BlockchainMetadata: summary fields
// about the whole chain, stamped into the metadata bucket under a
// single "metadata" key.
type Metadata struct {
	Version           string `json:"version"`
	Difficulty        uint32 `json:"difficulty"`
	TotalBlocks       uint64 `json:"total_blocks"`
	TotalTransactions uint64 `json:"total_transactions"`
	LastBlockHash     string `json:"last_block_hash"`
	CreatedAt         int64  `json:"created_at"`
	LastUpdated       int64  `json:"last_updated"`
	IntegrityHash     string `json:"integrity_hash"`
	BackupCount       uint64 `json:"backup_count"`
	LastBackup        int64  `json:"last_backup"`
}

const metadataKey = "metadata"

// SaveMetadata writes m to the metadata bucket, overwriting whatever
// was there.
func (s *Store) SaveMetadata(m *Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("%w: marshal metadata: %v", nodeerrors.ErrStorageError, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMetadata).Put([]byte(metadataKey), data)
	})
}

// LoadMetadata reads the metadata record, returning a zero-value
// Metadata (with an empty Version) if none has been saved yet.
func (s *Store) LoadMetadata() (*Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &Metadata{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMetadata).Get([]byte(metadataKey))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, m)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load metadata: %v", nodeerrors.ErrStorageError, err)
	}
	return m, nil
}
