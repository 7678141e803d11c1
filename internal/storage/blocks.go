package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/types"
)

// blockKey encodes a block index as an 8-byte big-endian key so that
// bbolt's native ascending-key iteration order also is the block
// height order (§4.7, §9's ascending-key-order integrity requirement).
func blockKey(index uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, index)
	return key
}

// SaveBlock persists one block keyed by its height.
func (s *Store) SaveBlock(block *types.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("%w: marshal block %d: %v", nodeerrors.ErrStorageError, block.Index, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBlocks).Put(blockKey(block.Index), data)
	})
}

// LoadBlock reads the block at index, or (nil, false, nil) if absent.
func (s *Store) LoadBlock(index uint64) (*types.Block, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var block *types.Block
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketBlocks).Get(blockKey(index))
		if data == nil {
			return nil
		}
		block = &types.Block{}
		return json.Unmarshal(data, block)
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: load block %d: %v", nodeerrors.ErrStorageError, index, err)
	}
	return block, block != nil, nil
}

// SaveAllBlocks persists a full chain, overwriting any existing
// entries with the same indices.
func (s *Store) SaveAllBlocks(blocks []*types.Block) error {
	for _, b := range blocks {
		if err := s.SaveBlock(b); err != nil {
			return err
		}
	}
	return nil
}

// LoadAllBlocks reads every block in the bucket in ascending index
// order, the order bbolt's cursor walks keys in since blockKey is
// big-endian fixed-width.
func (s *Store) LoadAllBlocks() ([]*types.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var blocks []*types.Block
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketBlocks).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			b := &types.Block{}
			if err := json.Unmarshal(v, b); err != nil {
				return err
			}
			blocks = append(blocks, b)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load all blocks: %v", nodeerrors.ErrStorageError, err)
	}
	return blocks, nil
}
