package chain

import (
	"crypto/ed25519"
	"fmt"

	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/types"
	"gillean.network/gillean/internal/vm"
	"gillean.network/gillean/internal/zkproof"
)

// ValidateChain replays blocks from genesis and checks every invariant
// of §3/§8: index contiguity, previous-hash linkage, recomputed
// hash/Merkle root, PoW difficulty (PoW mode only), transaction
// signatures, and balance replay never going negative. pubKeys supplies
// the registered signing key for every sender address encountered; a
// transaction from an unregistered sender fails validation. It only
// reads blocks and mutates no live *Blockchain; callers use it to vet a
// candidate chain before a reorg.
func ValidateChain(blocks []*types.Block, mode Mode, difficultyCheck bool, pubKeys map[string]ed25519.PublicKey) error {
	if len(blocks) == 0 {
		return fmt.Errorf("%w: chain has no blocks", nodeerrors.ErrChainValidationFailed)
	}
	if blocks[0].Index != 0 || blocks[0].PreviousHash != types.ZeroHash {
		return fmt.Errorf("%w: genesis block malformed", nodeerrors.ErrChainValidationFailed)
	}

	balances := make(map[string]types.Amount)
	nonces := make(map[string]uint64)
	replay := &Blockchain{vmExec: vm.NewNoopExecutor(), zkVerifier: zkproof.NewCommitmentVerifier()}

	for i, block := range blocks {
		if uint64(i) != block.Index {
			return fmt.Errorf("%w: %v", nodeerrors.ErrChainValidationFailed, &nodeerrors.InvalidIndexError{Expected: uint64(i), Got: block.Index})
		}
		if i > 0 {
			prev := blocks[i-1]
			if block.PreviousHash != prev.Hash {
				return fmt.Errorf("%w: %v", nodeerrors.ErrChainValidationFailed, &nodeerrors.InvalidPreviousHashError{Expected: prev.Hash, Got: block.PreviousHash})
			}
		}
		if err := block.ValidateStructure(mode == ModeProofOfWork && difficultyCheck); err != nil {
			return fmt.Errorf("%w: block %d: %v", nodeerrors.ErrChainValidationFailed, block.Index, err)
		}
		for _, tx := range block.Transactions {
			if err := tx.Validate(); err != nil {
				return fmt.Errorf("%w: block %d tx %s: %v", nodeerrors.ErrChainValidationFailed, block.Index, tx.IDHex(), err)
			}
			pubKey, ok := pubKeys[tx.Sender]
			if !ok {
				return fmt.Errorf("%w: block %d tx %s: no registered public key for sender %s", nodeerrors.ErrChainValidationFailed, block.Index, tx.IDHex(), tx.Sender)
			}
			if err := tx.VerifySignature(pubKey); err != nil {
				return fmt.Errorf("%w: block %d tx %s: %v", nodeerrors.ErrChainValidationFailed, block.Index, tx.IDHex(), err)
			}
			if _, err := replay.applyTransaction(balances, nonces, tx); err != nil {
				return fmt.Errorf("%w: block %d tx %s: %v", nodeerrors.ErrChainValidationFailed, block.Index, tx.IDHex(), err)
			}
		}
	}
	return nil
}

// ChainScore ranks a candidate chain for the reorg comparison of §4.5:
// "Longest valid chain (PoW) or highest finalized height then highest
// block index (PoS)". Higher is better. finalizedHeight is the index
// of the highest block in blocks known to be PoS-finalized, or -1 if
// none.
func ChainScore(mode Mode, blocks []*types.Block, finalizedHeight int64) (finalized int64, length int) {
	if mode == ModeProofOfStake {
		return finalizedHeight, len(blocks)
	}
	return -1, len(blocks)
}

// PreferCandidate reports whether candidate should replace current
// under the reorg policy of §4.5.
func PreferCandidate(mode Mode, currentBlocks, candidateBlocks []*types.Block, currentFinalized, candidateFinalized int64) bool {
	curFin, curLen := ChainScore(mode, currentBlocks, currentFinalized)
	candFin, candLen := ChainScore(mode, candidateBlocks, candidateFinalized)
	if mode == ModeProofOfStake {
		if candFin != curFin {
			return candFin > curFin
		}
		return candLen > curLen
	}
	return candLen > curLen
}
