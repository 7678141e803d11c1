// Package mempool holds pending transactions awaiting inclusion in a
// block. Grounded on the teacher's internal/mempool.Mempool (hex-ID
// keyed map, AddTransaction/GetTransactions/RemoveTransaction/Count
// shape), generalized to the new internal/types.Transaction and to the
// FIFO selection order §4.5 requires: the teacher's GetTransactions
// returns map-iteration order, which is unspecified in Go, so this
// version tracks insertion order explicitly in a slice alongside the
// map.
package mempool

import (
	"fmt"
	"sync"

	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/types"
)

// Pool is a FIFO, per-shard transaction pool.
type Pool struct {
	mu    sync.RWMutex
	byID  map[[32]byte]*types.Transaction
	order [][32]byte
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{byID: make(map[[32]byte]*types.Transaction)}
}

// Add inserts tx if not already present, preserving FIFO order.
func (p *Pool) Add(tx *types.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if tx == nil {
		return fmt.Errorf("%w: cannot add nil transaction", nodeerrors.ErrInvalidTransaction)
	}
	if _, exists := p.byID[tx.ID]; exists {
		return fmt.Errorf("%w: transaction %s already in mempool", nodeerrors.ErrInvalidTransaction, tx.IDHex())
	}
	p.byID[tx.ID] = tx
	p.order = append(p.order, tx.ID)
	return nil
}

// Take returns up to limit transactions in FIFO order without removing
// them, for candidate block assembly (§4.5: "collect up to N pending
// transactions FIFO"). limit<=0 returns all.
func (p *Pool) Take(limit int) []*types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if limit <= 0 || limit > len(p.order) {
		limit = len(p.order)
	}
	out := make([]*types.Transaction, 0, limit)
	for _, id := range p.order[:limit] {
		out = append(out, p.byID[id])
	}
	return out
}

// Remove evicts a transaction, typically after it lands in a block.
func (p *Pool) Remove(id [32]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byID[id]; !ok {
		return
	}
	delete(p.byID, id)
	for i, cur := range p.order {
		if cur == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Count returns the number of pending transactions.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.order)
}
