package storage

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/types"
)

// IntegrityCheckResult mirrors storage.rs's IntegrityCheckResult: a
// snapshot of the database's consistency at a point in time.
type IntegrityCheckResult struct {
	IsValid               bool     `json:"is_valid"`
	Checksum              string   `json:"checksum"`
	BlockCount            uint64   `json:"block_count"`
	TransactionCount      uint64   `json:"transaction_count"`
	CorruptedBlocks       []uint64 `json:"corrupted_blocks"`
	CorruptedTransactions []string `json:"corrupted_transactions"`
	CheckedAt             int64    `json:"checked_at"`
}

const integrityCheckKey = "last_check"

// IntegrityCheck walks the blocks and transactions buckets in
// ascending key order — bbolt's native cursor order, which for
// big-endian fixed-width block keys is also height order — accumulating
// a running SHA-256 over every key and value, per §4.7/§9. A block that
// fails to re-parse or whose stored hash no longer matches its
// recomputed hash is recorded as corrupted, but does not stop the scan.
func (s *Store) IntegrityCheck(now int64) (*IntegrityCheckResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := &IntegrityCheckResult{CheckedAt: now, IsValid: true}
	hasher := sha256.New()

	err := s.db.View(func(tx *bbolt.Tx) error {
		blocks := tx.Bucket(bucketBlocks)
		bc := blocks.Cursor()
		for k, v := bc.First(); k != nil; k, v = bc.Next() {
			hasher.Write(k)
			hasher.Write(v)
			result.BlockCount++
			b := &types.Block{}
			if err := json.Unmarshal(v, b); err != nil || b.ComputeHash() != b.Hash {
				result.CorruptedBlocks = append(result.CorruptedBlocks, blockIndexFromKey(k))
				result.IsValid = false
			}
		}

		txs := tx.Bucket(bucketTransactions)
		tc := txs.Cursor()
		for k, v := tc.First(); k != nil; k, v = tc.Next() {
			hasher.Write(k)
			hasher.Write(v)
			result.TransactionCount++
			if !validBlockJSON(v) {
				result.CorruptedTransactions = append(result.CorruptedTransactions, string(k))
				result.IsValid = false
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: integrity check: %v", nodeerrors.ErrStorageError, err)
	}

	result.Checksum = hex.EncodeToString(hasher.Sum(nil))
	if err := s.saveIntegrityResult(result); err != nil {
		return nil, err
	}
	s.lastCheck = result
	return result, nil
}

func (s *Store) saveIntegrityResult(result *IntegrityCheckResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%w: marshal integrity result: %v", nodeerrors.ErrStorageError, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIntegrity).Put([]byte(integrityCheckKey), data)
	})
}

// LastIntegrityCheck returns the most recently recorded integrity
// check, reading it from disk if it hasn't been loaded into memory yet.
func (s *Store) LastIntegrityCheck() (*IntegrityCheckResult, bool, error) {
	s.mu.Lock()
	if s.lastCheck != nil {
		defer s.mu.Unlock()
		return s.lastCheck, true, nil
	}
	s.mu.Unlock()

	var result *IntegrityCheckResult
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketIntegrity).Get([]byte(integrityCheckKey))
		if data == nil {
			return nil
		}
		result = &IntegrityCheckResult{}
		return json.Unmarshal(data, result)
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: load integrity check: %v", nodeerrors.ErrStorageError, err)
	}
	return result, result != nil, nil
}

func blockIndexFromKey(k []byte) uint64 {
	if len(k) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(k)
}

// validBlockJSON is the cheap structural check IntegrityCheck applies
// to transaction records: a record counts as intact when it is
// non-empty and begins with '{' or '['; it is not parsed further.
func validBlockJSON(v []byte) bool {
	return len(v) > 0 && (v[0] == '{' || v[0] == '[')
}
