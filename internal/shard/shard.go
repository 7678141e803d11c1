// Package shard implements the sharded transaction coordinator of
// §4.8: deterministic shard assignment and a two-phase-commit protocol
// for transactions that span two shards.
//
// Grounded on original_source/src/sharding.rs (NUM_SHARDS,
// calculate_shard_id, CrossShardTransaction/CrossShardStatus,
// CrossShardCoordinator) for the algorithm, and on the teacher's
// internal/blockchain.Blockchain for the per-shard chain wrapper idiom
// (one mutex-guarded struct per shard, owning its own chain + mempool).
package shard

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"gillean.network/gillean/internal/chain"
	"gillean.network/gillean/internal/mempool"
	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/pos"
	"gillean.network/gillean/internal/pow"
	"gillean.network/gillean/internal/types"
)

// NumShards is the fixed shard count (§4.8).
const NumShards = 4

// ShardOf deterministically assigns sender to a shard:
// be_u32(sha256(sender)[:4]) mod NumShards.
func ShardOf(sender string) uint32 {
	sum := sha256.Sum256([]byte(sender))
	return binary.BigEndian.Uint32(sum[:4]) % NumShards
}

// Shard wraps one shard's chain and mempool.
type Shard struct {
	ID    uint32
	Chain *chain.Blockchain
}

// Manager owns every shard and the cross-shard coordinator.
type Manager struct {
	shards      map[uint32]*Shard
	coordinator *Coordinator
}

// NewManager constructs NumShards independent chains, all in the given
// mode, sharing no state with each other.
func NewManager(mode chain.Mode, newPow func() *pow.Engine, newPos func() *pos.Engine, now int64) (*Manager, error) {
	m := &Manager{shards: make(map[uint32]*Shard, NumShards), coordinator: newCoordinator()}
	for i := uint32(0); i < NumShards; i++ {
		var powEngine *pow.Engine
		var posEngine *pos.Engine
		if newPow != nil {
			powEngine = newPow()
		}
		if newPos != nil {
			posEngine = newPos()
		}
		bc, err := chain.New(mode, powEngine, posEngine, mempool.New(), now)
		if err != nil {
			return nil, fmt.Errorf("shard %d: %w", i, err)
		}
		m.shards[i] = &Shard{ID: i, Chain: bc}
	}
	return m, nil
}

// Shard returns the shard for the given id.
func (m *Manager) Shard(id uint32) (*Shard, error) {
	s, ok := m.shards[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown shard %d", nodeerrors.ErrInvalidInput, id)
	}
	return s, nil
}

// AssignAndSubmit routes tx to its sender's shard. If receiver belongs
// to a different shard, it is handed to the cross-shard coordinator
// instead of being admitted directly (§4.8). proposer is this node's
// PoS validator address used if the cross-shard path needs to seal a
// leg block immediately; ignored for a same-shard transaction (which
// just joins the mempool) and under ModeProofOfWork.
func (m *Manager) AssignAndSubmit(tx *types.Transaction, now int64, proposer string) error {
	source := ShardOf(tx.Sender)
	target := ShardOf(tx.Receiver)

	if source == target {
		s, err := m.Shard(source)
		if err != nil {
			return err
		}
		return s.Chain.AddTransaction(tx)
	}

	sourceShard, err := m.Shard(source)
	if err != nil {
		return err
	}
	targetShard, err := m.Shard(target)
	if err != nil {
		return err
	}
	return m.coordinator.Begin(tx, sourceShard, targetShard, now, proposer)
}

// Coordinator returns the manager's cross-shard coordinator.
func (m *Manager) Coordinator() *Coordinator { return m.coordinator }
