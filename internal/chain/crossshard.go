package chain

import (
	"fmt"
	"log"

	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/types"
)

// SealCrossShardDebit seals a single-transaction block applying the
// source-shard half of a cross-shard transfer: tx.Sender is debited
// and its nonce advanced. It is the commit-phase source-shard leg of
// §4.8's two-phase-commit protocol. Unlike the old direct-mutation
// approach, the debit is only ever visible through a real sealed
// block, matching §8's invariant that "for every committed
// cross-shard transaction, both shards contain a block applying the
// corresponding half."
func (bc *Blockchain) SealCrossShardDebit(tx *types.Transaction, now int64, proposer string) (*types.Block, error) {
	return bc.sealCrossShardLegLocked(tx, now, proposer, func(balances map[string]types.Amount, nonces map[string]uint64) error {
		if balances[tx.Sender] < tx.Amount {
			return &nodeerrors.InsufficientBalanceError{Address: tx.Sender, Have: int64(balances[tx.Sender]), Need: int64(tx.Amount)}
		}
		if tx.Nonce <= nonces[tx.Sender] {
			return &nodeerrors.StaleNonceError{Address: tx.Sender, Last: nonces[tx.Sender], Got: tx.Nonce}
		}
		balances[tx.Sender] -= tx.Amount
		nonces[tx.Sender] = tx.Nonce
		return nil
	})
}

// SealCrossShardCredit seals a single-transaction block applying the
// target-shard half of a cross-shard transfer: tx.Receiver is
// credited. The commit-phase target-shard leg of §4.8's protocol;
// credits never fail once the source leg has already committed.
func (bc *Blockchain) SealCrossShardCredit(tx *types.Transaction, now int64, proposer string) (*types.Block, error) {
	return bc.sealCrossShardLegLocked(tx, now, proposer, func(balances map[string]types.Amount, nonces map[string]uint64) error {
		balances[tx.Receiver] += tx.Amount
		return nil
	})
}

// sealCrossShardLegLocked builds and seals a block carrying tx alone,
// then applies only mutate's effect rather than the generic
// Kind-switch applyTransaction would run — a cross-shard transfer's
// two halves must each land on exactly one shard, never both, so
// neither SealCrossShardDebit nor SealCrossShardCredit can reuse
// applyTransaction's Transfer case directly. It otherwise mirrors
// Seal: same consensus path (runConsensusLocked), same scratch-copy-
// then-swap balance staging, same block-list append.
func (bc *Blockchain) sealCrossShardLegLocked(tx *types.Transaction, now int64, proposer string, mutate func(balances map[string]types.Amount, nonces map[string]uint64) error) (*types.Block, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	tip := bc.getLatestBlockInternal()
	nextIndex := tip.Index + 1

	block := &types.Block{
		Index:        nextIndex,
		Timestamp:    now,
		PreviousHash: tip.Hash,
		Transactions: []*types.Transaction{tx},
	}
	block.MerkleRoot = block.ComputeMerkleRoot()

	if err := bc.runConsensusLocked(block, nextIndex, tip.Hash, proposer); err != nil {
		return nil, err
	}

	scratchBalances := make(map[string]types.Amount, len(bc.balances))
	for k, v := range bc.balances {
		scratchBalances[k] = v
	}
	scratchNonces := make(map[string]uint64, len(bc.nonces))
	for k, v := range bc.nonces {
		scratchNonces[k] = v
	}

	if err := mutate(scratchBalances, scratchNonces); err != nil {
		return nil, fmt.Errorf("%w: cross-shard leg block %d: %v", nodeerrors.ErrBlockValidationFailed, block.Index, err)
	}

	bc.balances = scratchBalances
	bc.nonces = scratchNonces
	bc.stateRoot = bc.computeStateRootLocked()
	bc.blocks = append(bc.blocks, block)
	bc.blockByHash[block.Hash] = block
	log.Printf("CHAIN: sealed cross-shard leg block index=%d hash=%s tx=%s", block.Index, block.Hash, tx.IDHex())
	return block, nil
}
