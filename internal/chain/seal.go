package chain

import (
	"fmt"
	"log"

	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/types"
	"gillean.network/gillean/internal/zkproof"
)

// MaxTransactionsPerBlock bounds candidate block assembly (§4.5: "up to
// N pending transactions FIFO").
const MaxTransactionsPerBlock = 500

// Seal assembles a candidate block from up to MaxTransactionsPerBlock
// pending mempool transactions, runs the chain's consensus path (PoW
// mining or PoS proposer assignment), and applies it. proposer is
// ignored under ModeProofOfWork. Applying a block mutates balances and
// the state root only if every transaction in the block succeeds —
// failure mid-apply rolls the whole block back, per §4.5 ("On any
// failure mid-apply the balance and state-tree mutations for that
// block are rolled back atomically").
func (bc *Blockchain) Seal(now int64, proposer string) (*types.Block, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	candidates := bc.mempool.Take(MaxTransactionsPerBlock)
	tip := bc.getLatestBlockInternal()
	nextIndex := tip.Index + 1

	block := &types.Block{
		Index:        nextIndex,
		Timestamp:    now,
		PreviousHash: tip.Hash,
		Transactions: candidates,
	}
	block.MerkleRoot = block.ComputeMerkleRoot()

	if err := bc.runConsensusLocked(block, nextIndex, tip.Hash, proposer); err != nil {
		return nil, err
	}

	if err := bc.applyLocked(block); err != nil {
		return nil, err
	}
	for _, r := range block.Receipts {
		if !r.Success {
			log.Printf("CHAIN: contract call %x failed in block index=%d: %s", r.TxID, block.Index, r.Error)
		}
	}

	bc.blocks = append(bc.blocks, block)
	bc.blockByHash[block.Hash] = block
	for _, tx := range candidates {
		bc.mempool.Remove(tx.ID)
	}
	log.Printf("CHAIN: sealed block index=%d hash=%s txs=%d", block.Index, block.Hash, len(candidates))
	return block, nil
}

// runConsensusLocked fills in the consensus-dependent fields of a
// candidate block: PoW mining or PoS proposer-slot assignment. Shared
// by Seal and the cross-shard single-leg sealing path in
// crossshard.go, so both go through the same mining/proposer-check
// logic rather than duplicating it. Callers must hold bc.mu.
func (bc *Blockchain) runConsensusLocked(block *types.Block, nextIndex uint64, tipHash string, proposer string) error {
	switch bc.mode {
	case ModeProofOfWork:
		block.Difficulty = bc.pow.Difficulty
		if err := bc.pow.Mine(block); err != nil {
			return err
		}
	case ModeProofOfStake:
		selected, err := bc.pos.SelectProposer(nextIndex, tipHash)
		if err != nil {
			return err
		}
		if selected != proposer {
			return fmt.Errorf("%w: proposer %s is not the selected validator %s for slot %d", nodeerrors.ErrConsensusError, proposer, selected, nextIndex)
		}
		block.Proposer = proposer
		block.Hash = block.ComputeHash()
	}
	return nil
}

// applyLocked mutates balances and nonces for every transaction in
// block, staged on a scratch copy first so a mid-block failure leaves
// live state untouched (§4.5, §7). A failed ContractCall/ContractDeploy
// does not count as a mid-block failure: it is recorded on
// block.Receipts and the rest of the block still applies, per §7
// ("ContractValidationFailed / ContractExecutionError — scoped to the
// contract call; the block may still apply with the failed call
// recorded").
func (bc *Blockchain) applyLocked(block *types.Block) error {
	scratchBalances := make(map[string]types.Amount, len(bc.balances))
	for k, v := range bc.balances {
		scratchBalances[k] = v
	}
	scratchNonces := make(map[string]uint64, len(bc.nonces))
	for k, v := range bc.nonces {
		scratchNonces[k] = v
	}

	var receipts []types.ContractReceipt
	for _, tx := range block.Transactions {
		receipt, err := bc.applyTransaction(scratchBalances, scratchNonces, tx)
		if err != nil {
			return fmt.Errorf("%w: block %d: %v", nodeerrors.ErrBlockValidationFailed, block.Index, err)
		}
		if receipt != nil {
			receipts = append(receipts, *receipt)
		}
	}

	bc.balances = scratchBalances
	bc.nonces = scratchNonces
	bc.stateRoot = bc.computeStateRootLocked()
	block.Receipts = receipts
	return nil
}

// applyTransaction mutates balances/nonces in place for a single
// transaction's kind-specific effect and returns a non-nil receipt only
// for ContractCall/ContractDeploy, whose outcome is recorded rather than
// enforced as a block-wide failure. The returned error is reserved for
// failures that must roll the whole block back (stale nonce,
// insufficient balance on Transfer/PrivateTransfer/Stake, a
// PrivateTransfer proof that doesn't match its commitment).
// ContractCall/ContractDeploy route through bc.vmExec so the fee
// charged reflects what that Executor actually reports rather than a
// hard-coded debit, and PrivateTransfer routes through bc.zkVerifier,
// checking tx.Message as the proof blob against the commitment this
// transaction's own public fields imply — per §6's "proofs as opaque
// byte blobs" boundary, the core never learns the hidden amount, only
// that the proof matches.
func (bc *Blockchain) applyTransaction(balances map[string]types.Amount, nonces map[string]uint64, tx *types.Transaction) (*types.ContractReceipt, error) {
	if tx.Nonce <= nonces[tx.Sender] {
		return nil, &nodeerrors.StaleNonceError{Address: tx.Sender, Last: nonces[tx.Sender], Got: tx.Nonce}
	}

	switch tx.Kind {
	case types.Transfer:
		if balances[tx.Sender] < tx.Amount {
			return nil, &nodeerrors.InsufficientBalanceError{Address: tx.Sender, Have: int64(balances[tx.Sender]), Need: int64(tx.Amount)}
		}
		balances[tx.Sender] -= tx.Amount
		balances[tx.Receiver] += tx.Amount
	case types.PrivateTransfer:
		commitment := zkproof.Commit(tx.Sender, tx.Receiver, int64(tx.Amount), tx.Nonce)
		if err := bc.zkVerifier.Verify(zkproof.Proof{CommitmentHash: commitment, ProofData: tx.Message}); err != nil {
			return nil, fmt.Errorf("%w: %v", nodeerrors.ErrInvalidTransaction, err)
		}
		if balances[tx.Sender] < tx.Amount {
			return nil, &nodeerrors.InsufficientBalanceError{Address: tx.Sender, Have: int64(balances[tx.Sender]), Need: int64(tx.Amount)}
		}
		balances[tx.Sender] -= tx.Amount
		balances[tx.Receiver] += tx.Amount
	case types.Stake:
		if balances[tx.Sender] < tx.Amount {
			return nil, &nodeerrors.InsufficientBalanceError{Address: tx.Sender, Have: int64(balances[tx.Sender]), Need: int64(tx.Amount)}
		}
		balances[tx.Sender] -= tx.Amount
	case types.Unstake:
		balances[tx.Sender] += tx.Amount
	case types.ContractCall, types.ContractDeploy:
		nonces[tx.Sender] = tx.Nonce
		result, err := bc.vmExec.Execute(tx)
		if err != nil {
			return &types.ContractReceipt{TxID: tx.ID, Success: false, Error: err.Error()}, nil
		}
		if !result.Success {
			return &types.ContractReceipt{TxID: tx.ID, Success: false, GasUsed: result.GasUsed, Error: "contract execution reported failure"}, nil
		}
		if balances[tx.Sender] < result.Fee {
			err := &nodeerrors.InsufficientBalanceError{Address: tx.Sender, Have: int64(balances[tx.Sender]), Need: int64(result.Fee)}
			return &types.ContractReceipt{TxID: tx.ID, Success: false, GasUsed: result.GasUsed, Error: err.Error()}, nil
		}
		balances[tx.Sender] -= result.Fee
		return &types.ContractReceipt{TxID: tx.ID, Success: true, GasUsed: result.GasUsed}, nil
	}

	nonces[tx.Sender] = tx.Nonce
	return nil, nil
}
