package shard

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/types"
)

// Status is a cross-shard transaction's two-phase-commit state, per
// original_source/src/sharding.rs's CrossShardStatus.
type Status int

const (
	Preparing Status = iota
	Prepared
	Committing
	Committed
	Failed
)

func (s Status) String() string {
	switch s {
	case Preparing:
		return "Preparing"
	case Prepared:
		return "Prepared"
	case Committing:
		return "Committing"
	case Committed:
		return "Committed"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

func (s Status) terminal() bool { return s == Committed || s == Failed }

// CrossShardTx tracks one in-flight cross-shard transfer.
type CrossShardTx struct {
	ID          string
	SourceShard uint32
	TargetShard uint32
	Transaction *types.Transaction
	Status      Status
	CreatedAt   int64
	FailReason  string
}

// Coordinator runs the two-phase-commit protocol for cross-shard
// transactions, grounded on CrossShardCoordinator's
// active_transactions/transaction_status maps.
type Coordinator struct {
	mu  sync.RWMutex
	txs map[string]*CrossShardTx
}

func newCoordinator() *Coordinator {
	return &Coordinator{txs: make(map[string]*CrossShardTx)}
}

// crossShardID formats an id as cross_{src}_{dst}_{millis}, per §4.8/§6.
func crossShardID(source, target uint32, nowMillis int64) string {
	return fmt.Sprintf("cross_%d_%d_%d", source, target, nowMillis)
}

// Begin starts a new cross-shard transfer: it votes Prepared on both
// the source shard (balance + nonce check) and the target shard
// (always votes yes — credits never fail), per §4.8/§9's invariant
// that a transaction only reaches Committing once *both* shards have
// voted Prepared. If either vote fails the transaction is recorded
// Failed and never touches either shard's ledger. Once Committing, the
// debit and credit halves are each sealed into a real block on their
// own shard (chain.SealCrossShardDebit/SealCrossShardCredit) rather
// than mutating balances directly, per §4.8's "source shard finalizes
// the debit into its next block; target shard finalizes the credit
// into its next block" and §8's invariant that every committed
// cross-shard transaction leaves a block behind on both shards.
// proposer is this node's PoS validator address; ignored under PoW,
// same as chain.Blockchain.Seal.
func (c *Coordinator) Begin(tx *types.Transaction, source, target *Shard, now int64, proposer string) error {
	c.mu.Lock()
	id := crossShardID(source.ID, target.ID, now)
	record := &CrossShardTx{
		ID:          id,
		SourceShard: source.ID,
		TargetShard: target.ID,
		Transaction: tx,
		Status:      Preparing,
		CreatedAt:   now,
	}
	c.txs[id] = record
	c.mu.Unlock()

	sourceVote := source.Chain.CanDebit(tx.Sender, tx.Amount, tx.Nonce)
	if !sourceVote {
		c.mu.Lock()
		record.Status = Failed
		record.FailReason = "source shard could not prepare: insufficient balance or stale nonce"
		c.mu.Unlock()
		return fmt.Errorf("%w: cross-shard transaction %s failed to prepare: %s", nodeerrors.ErrChainValidationFailed, id, record.FailReason)
	}

	// Both legs have now voted Prepared (source: balance+nonce check above;
	// target: credits always succeed), so the transaction may advance to
	// Committing. Nothing commits before both votes land.
	c.mu.Lock()
	record.Status = Committing
	c.mu.Unlock()

	if _, err := source.Chain.SealCrossShardDebit(tx, now, proposer); err != nil {
		c.mu.Lock()
		record.Status = Failed
		record.FailReason = err.Error()
		c.mu.Unlock()
		return fmt.Errorf("%w: cross-shard transaction %s failed to commit source leg: %v", nodeerrors.ErrChainValidationFailed, id, err)
	}
	if _, err := target.Chain.SealCrossShardCredit(tx, now, proposer); err != nil {
		c.mu.Lock()
		record.Status = Failed
		record.FailReason = err.Error()
		c.mu.Unlock()
		return fmt.Errorf("%w: cross-shard transaction %s failed to commit target leg: %v", nodeerrors.ErrChainValidationFailed, id, err)
	}

	c.mu.Lock()
	record.Status = Committed
	c.mu.Unlock()
	log.Printf("SHARD: cross-shard transaction %s committed (shard %d -> shard %d)", id, source.ID, target.ID)
	return nil
}

// Status returns the current state of a cross-shard transaction.
func (c *Coordinator) Status(id string) (Status, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tx, ok := c.txs[id]
	if !ok {
		return 0, false
	}
	return tx.Status, true
}

// Incomplete returns every cross-shard transaction in the
// coordinator's map not yet in a terminal state, in ascending ID
// order. The map is held in memory only, so after a restart it holds
// only transactions begun since then.
func (c *Coordinator) Incomplete() []*CrossShardTx {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*CrossShardTx, 0)
	for _, tx := range c.txs {
		if !tx.Status.terminal() {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Register inserts (or replaces) a cross-shard transaction record in
// the coordinator's map, keyed by its ID.
func (c *Coordinator) Register(tx *CrossShardTx) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txs[tx.ID] = tx
}
