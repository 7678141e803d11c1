package storage

import (
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"
	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/types"
)

// SaveBalances overwrites the balances bucket with exactly the given
// ledger snapshot, one key per address.
func (s *Store) SaveBalances(balances map[string]types.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBalances)
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		for addr, amount := range balances {
			val := make([]byte, 8)
			binary.BigEndian.PutUint64(val, uint64(amount))
			if err := b.Put([]byte(addr), val); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadBalances reads the full balance ledger snapshot.
func (s *Store) LoadBalances() (map[string]types.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balances := make(map[string]types.Amount)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBalances).ForEach(func(k, v []byte) error {
			if len(v) != 8 {
				return fmt.Errorf("corrupt balance entry for %s", k)
			}
			balances[string(k)] = types.Amount(int64(binary.BigEndian.Uint64(v)))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load balances: %v", nodeerrors.ErrStorageError, err)
	}
	return balances, nil
}
