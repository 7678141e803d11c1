package storage

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/types"
)

// SavePendingTransactions overwrites the transactions bucket with
// exactly the given set, keyed by hex transaction ID, so the mempool
// can be restored verbatim across a restart.
func (s *Store) SavePendingTransactions(txs []*types.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTransactions)
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		for _, t := range txs {
			data, err := json.Marshal(t)
			if err != nil {
				return fmt.Errorf("marshal transaction %x: %w", t.ID, err)
			}
			if err := b.Put([]byte(hex.EncodeToString(t.ID[:])), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadPendingTransactions reads every persisted pending transaction.
func (s *Store) LoadPendingTransactions() ([]*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var txs []*types.Transaction
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTransactions).ForEach(func(k, v []byte) error {
			t := &types.Transaction{}
			if err := json.Unmarshal(v, t); err != nil {
				return err
			}
			txs = append(txs, t)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load pending transactions: %v", nodeerrors.ErrStorageError, err)
	}
	return txs, nil
}
