package chain

import (
	"fmt"
	"log"

	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/types"
)

// AppendExternal validates and applies a block this node did not
// itself seal (one gossiped in over internal/network) onto the
// current tip. Unlike Seal, it never mines or selects a proposer
// itself: it checks the block already carries a valid solution (PoW)
// or a proposer this node's registry agrees was the slot's selected
// validator (PoS), then replays its transactions exactly as Seal
// does. A block that doesn't extend the current tip, fails structural
// validation, or carries a transaction from an unregistered or
// wrongly-signed sender is rejected and never touches chain state.
func (bc *Blockchain) AppendExternal(block *types.Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	tip := bc.getLatestBlockInternal()
	if block.Index != tip.Index+1 {
		return fmt.Errorf("%w: %v", nodeerrors.ErrChainValidationFailed, &nodeerrors.InvalidIndexError{Expected: tip.Index + 1, Got: block.Index})
	}
	if block.PreviousHash != tip.Hash {
		return fmt.Errorf("%w: %v", nodeerrors.ErrChainValidationFailed, &nodeerrors.InvalidPreviousHashError{Expected: tip.Hash, Got: block.PreviousHash})
	}
	if err := block.ValidateStructure(bc.mode == ModeProofOfWork); err != nil {
		return fmt.Errorf("%w: block %d: %v", nodeerrors.ErrChainValidationFailed, block.Index, err)
	}

	switch bc.mode {
	case ModeProofOfWork:
		if block.Difficulty != bc.pow.Difficulty {
			return fmt.Errorf("%w: block %d declares difficulty %d, chain expects %d", nodeerrors.ErrInvalidProofOfWork, block.Index, block.Difficulty, bc.pow.Difficulty)
		}
	case ModeProofOfStake:
		selected, err := bc.pos.SelectProposer(block.Index, tip.Hash)
		if err != nil {
			return fmt.Errorf("%w: block %d: %v", nodeerrors.ErrConsensusError, block.Index, err)
		}
		if block.Proposer != selected {
			return fmt.Errorf("%w: block %d proposer %s is not the selected validator %s", nodeerrors.ErrConsensusError, block.Index, block.Proposer, selected)
		}
	}

	for _, tx := range block.Transactions {
		pubKey, ok := bc.pubKeys[tx.Sender]
		if !ok {
			return fmt.Errorf("%w: block %d tx %s: no registered public key for sender %s", nodeerrors.ErrInvalidSignature, block.Index, tx.IDHex(), tx.Sender)
		}
		if err := tx.VerifySignature(pubKey); err != nil {
			return fmt.Errorf("%w: block %d tx %s: %v", nodeerrors.ErrChainValidationFailed, block.Index, tx.IDHex(), err)
		}
	}

	if err := bc.applyLocked(block); err != nil {
		return err
	}

	bc.blocks = append(bc.blocks, block)
	bc.blockByHash[block.Hash] = block
	for _, tx := range block.Transactions {
		bc.mempool.Remove(tx.ID)
	}
	log.Printf("CHAIN: appended external block index=%d hash=%s txs=%d", block.Index, block.Hash, len(block.Transactions))
	return nil
}
