package storage

import (
	"fmt"

	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/types"
)

// ChainSnapshot is everything SaveBlockchain/LoadBlockchain persist
// together: the full block list and the ledger, per storage.rs's
// save_blockchain/load_blockchain pairing these into one call.
type ChainSnapshot struct {
	Blocks   []*types.Block
	Balances map[string]types.Amount
}

// SaveBlockchain persists a full chain snapshot and refreshes the
// summary metadata record (block/transaction counts, tip hash) from
// it, per §4.7.
func (s *Store) SaveBlockchain(snapshot *ChainSnapshot, now int64) error {
	if err := s.SaveAllBlocks(snapshot.Blocks); err != nil {
		return err
	}
	if err := s.SaveBalances(snapshot.Balances); err != nil {
		return err
	}

	meta, err := s.LoadMetadata()
	if err != nil {
		return err
	}
	meta.Version = FormatVersion
	meta.TotalBlocks = uint64(len(snapshot.Blocks))
	var txCount uint64
	var tipHash string
	var difficulty uint32
	for _, b := range snapshot.Blocks {
		txCount += uint64(len(b.Transactions))
		tipHash = b.Hash
		difficulty = b.Difficulty
	}
	meta.TotalTransactions = txCount
	meta.LastBlockHash = tipHash
	meta.Difficulty = difficulty
	meta.LastUpdated = now
	if meta.CreatedAt == 0 {
		meta.CreatedAt = now
	}
	return s.SaveMetadata(meta)
}

// LoadBlockchain reads back a full chain snapshot, version-gating on
// the stored metadata (§4.7, §7: a version mismatch has no migration
// path and must surface as an error, not a silent best-effort load).
func (s *Store) LoadBlockchain() (*ChainSnapshot, error) {
	meta, err := s.LoadMetadata()
	if err != nil {
		return nil, err
	}
	if meta.Version != "" && meta.Version != FormatVersion {
		return nil, &nodeerrors.VersionMismatchError{Expected: FormatVersion, Got: meta.Version}
	}

	blocks, err := s.LoadAllBlocks()
	if err != nil {
		return nil, err
	}
	balances, err := s.LoadBalances()
	if err != nil {
		return nil, err
	}
	if uint64(len(blocks)) != meta.TotalBlocks && meta.TotalBlocks != 0 {
		return nil, fmt.Errorf("%w: metadata reports %d blocks, store has %d", nodeerrors.ErrStateCorruption, meta.TotalBlocks, len(blocks))
	}
	return &ChainSnapshot{Blocks: blocks, Balances: balances}, nil
}
