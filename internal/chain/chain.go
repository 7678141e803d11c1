// Package chain implements the block/transaction pipeline of §4.5:
// genesis, transaction admission, block sealing under either PoW or
// PoS, balance application with rollback-on-failure, state-commitment
// recomputation, full chain validation, and reorg selection.
//
// Grounded on the teacher's internal/blockchain package
// (Blockchain.AddBlock, CreateGenesisBlock, CalculateBlockHash, the
// blocks/blockByHashMap/mu shape, currentHeightInternal/
// getLatestBlockInternal non-locking helpers) generalized from a
// single linear chain with placeholder hashing to the spec's
// Merkle-anchored, dual-consensus chain.
package chain

import (
	"crypto/ed25519"
	"fmt"
	"log"
	"sort"
	"sync"

	"gillean.network/gillean/internal/mempool"
	"gillean.network/gillean/internal/merkle"
	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/pos"
	"gillean.network/gillean/internal/pow"
	"gillean.network/gillean/internal/types"
	"gillean.network/gillean/internal/vm"
	"gillean.network/gillean/internal/zkproof"
)

// Mode selects which consensus path Seal uses.
type Mode int

const (
	ModeProofOfWork Mode = iota
	ModeProofOfStake
)

// Blockchain is a single shard's chain: blocks, pending mempool,
// account balances, and the per-sender nonce high-water mark, all
// guarded by one mutex, matching the teacher's Blockchain.mu scope
// (§5: "Each shard's chain is guarded by one sync.RWMutex covering
// blocks/mempool/balances/state-tree").
type Blockchain struct {
	mu sync.RWMutex

	mode Mode
	pow  *pow.Engine
	pos  *pos.Engine

	blocks      []*types.Block
	blockByHash map[string]*types.Block

	balances map[string]types.Amount
	nonces   map[string]uint64
	pubKeys  map[string]ed25519.PublicKey

	stateRoot string
	mempool   *mempool.Pool

	vmExec     vm.Executor
	zkVerifier zkproof.Verifier
}

// New constructs a chain with its genesis block already appended. now
// is injected rather than read from time.Now so callers control
// determinism at startup, matching §4.5's genesis recipe.
func New(mode Mode, powEngine *pow.Engine, posEngine *pos.Engine, mp *mempool.Pool, now int64) (*Blockchain, error) {
	if mode == ModeProofOfWork && powEngine == nil {
		return nil, fmt.Errorf("%w: proof-of-work chain requires a pow engine", nodeerrors.ErrConsensusError)
	}
	if mode == ModeProofOfStake && posEngine == nil {
		return nil, fmt.Errorf("%w: proof-of-stake chain requires a pos engine", nodeerrors.ErrConsensusError)
	}
	bc := &Blockchain{
		mode:        mode,
		pow:         powEngine,
		pos:         posEngine,
		blockByHash: make(map[string]*types.Block),
		balances:    make(map[string]types.Amount),
		nonces:      make(map[string]uint64),
		pubKeys:     make(map[string]ed25519.PublicKey),
		mempool:     mp,
		vmExec:      vm.NewNoopExecutor(),
		zkVerifier:  zkproof.NewCommitmentVerifier(),
	}

	genesis := &types.Block{Index: 0, Timestamp: now, PreviousHash: types.ZeroHash}
	genesis.MerkleRoot = genesis.ComputeMerkleRoot()
	switch mode {
	case ModeProofOfWork:
		if err := powEngine.Mine(genesis); err != nil {
			return nil, fmt.Errorf("failed to mine genesis block: %w", err)
		}
	default:
		genesis.Hash = genesis.ComputeHash()
	}
	bc.stateRoot = bc.computeStateRootLocked()
	bc.blocks = append(bc.blocks, genesis)
	bc.blockByHash[genesis.Hash] = genesis
	log.Printf("CHAIN: created genesis block hash=%s", genesis.Hash)
	return bc, nil
}

// currentHeightInternal is a non-locking helper, matching the teacher's
// convention.
func (bc *Blockchain) currentHeightInternal() int64 {
	if len(bc.blocks) == 0 {
		return -1
	}
	return int64(bc.blocks[len(bc.blocks)-1].Index)
}

// CurrentHeight returns the index of the tip block, or -1 if empty
// (never true after New succeeds).
func (bc *Blockchain) CurrentHeight() int64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.currentHeightInternal()
}

func (bc *Blockchain) getLatestBlockInternal() *types.Block {
	if len(bc.blocks) == 0 {
		return nil
	}
	return bc.blocks[len(bc.blocks)-1]
}

// Tip returns the chain's latest block.
func (bc *Blockchain) Tip() *types.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.getLatestBlockInternal()
}

// BlockByIndex retrieves a block by its index.
func (bc *Blockchain) BlockByIndex(index uint64) (*types.Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if index >= uint64(len(bc.blocks)) {
		return nil, fmt.Errorf("%w: block %d", nodeerrors.ErrInvalidIndex, index)
	}
	return bc.blocks[index], nil
}

// BlockByHash retrieves a block by its hex hash.
func (bc *Blockchain) BlockByHash(hash string) (*types.Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	b, ok := bc.blockByHash[hash]
	if !ok {
		return nil, fmt.Errorf("%w: block %s", nodeerrors.ErrInvalidHash, hash)
	}
	return b, nil
}

// Balance returns an address's current balance.
func (bc *Blockchain) Balance(address string) types.Amount {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.balances[address]
}

// CreditGenesis seeds an address's balance before any transactions are
// applied (used for initial allocation at network bootstrap). Only
// valid before any non-genesis block has been sealed.
func (bc *Blockchain) CreditGenesis(address string, amount types.Amount) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if bc.currentHeightInternal() != 0 {
		return fmt.Errorf("%w: genesis allocation only valid before the first block is sealed", nodeerrors.ErrChainValidationFailed)
	}
	bc.balances[address] += amount
	bc.stateRoot = bc.computeStateRootLocked()
	return nil
}

// computeStateRootLocked builds a Merkle tree over (address, balance)
// pairs sorted by address, giving a deterministic state commitment
// (§4.5's "state-commitment root").
func (bc *Blockchain) computeStateRootLocked() string {
	addrs := make([]string, 0, len(bc.balances))
	for addr := range bc.balances {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	items := make([]any, len(addrs))
	for i, addr := range addrs {
		items[i] = stateLeaf{address: addr, balance: bc.balances[addr]}
	}
	tree := merkle.New(items, stateLeafCanonicalizer)
	root, ok := tree.Root()
	if !ok {
		return emptyStateRootHex
	}
	return hexEncode(root)
}

// StateRoot returns the current state-commitment root.
func (bc *Blockchain) StateRoot() string {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.stateRoot
}

// PosEngine returns the chain's proof-of-stake engine, or nil under
// ModeProofOfWork. The engine guards its own state with its own mutex,
// so callers may hold onto and use the returned pointer without
// bc.mu — internal/consensus is the one place that needs this, to
// apply Stake/Unstake transactions to the validator registry as they
// land in a sealed block.
func (bc *Blockchain) PosEngine() *pos.Engine {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.pos
}

// PowEngine returns the chain's proof-of-work engine, or nil under
// ModeProofOfStake.
func (bc *Blockchain) PowEngine() *pow.Engine {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.pow
}
