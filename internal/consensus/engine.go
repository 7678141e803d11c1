// Package consensus is the slim layer that ties a running node's
// pieces together: it drives block proposal against internal/chain
// (through whichever of internal/pos or internal/pow that chain was
// built with), gossips sealed blocks and admitted transactions over
// internal/network, and applies the PoS side effects of Stake/Unstake
// transactions that internal/chain's balance ledger alone can't
// express.
//
// Grounded on the teacher's internal/consensus.ConsensusEngine (the
// event-loop-plus-goroutine shape, the CONSENSUS_ENGINE: log prefix,
// and the signal-driven Start/Stop pair), generalized from the
// teacher's single fixed chain to internal/shard.Manager's NumShards
// independent chains, and split so that mining/proposing — which can
// block for a while — never shares a goroutine with incoming message
// handling (§5's "mining runs on a dedicated goroutine pool, never the
// consensus engine's event loop goroutine").
package consensus

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"gillean.network/gillean/internal/network"
	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/shard"
	"gillean.network/gillean/internal/types"
)

// BlockEnvelope is what actually travels over internal/network's
// MessageNewBlock payload: a sealed block tagged with the shard it
// belongs to, since a gossiped block alone doesn't say which of the
// shard manager's independent chains it extends.
type BlockEnvelope struct {
	ShardID uint32       `json:"shard_id"`
	Block   *types.Block `json:"block"`
}

// Engine wires one node's shard manager to its network manager and
// drives block proposal on a timer, matching the teacher's
// ConsensusEngine/ProposerService split collapsed into one component
// scaled out per shard.
type Engine struct {
	mu sync.Mutex

	shards   *shard.Manager
	net      *network.Manager
	proposer string
	interval time.Duration
	clock    func() int64

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewEngine constructs an Engine. proposer is this node's validator
// address (PoS) or miner identity (PoW, where it is passed through to
// Seal but ignored); it may be empty for a follower node that only
// relays gossip and never calls Seal successfully. clock lets tests
// inject a deterministic time source; nil defaults to time.Now.
func NewEngine(shards *shard.Manager, net *network.Manager, proposer string, interval time.Duration, clock func() int64) *Engine {
	if clock == nil {
		clock = func() int64 { return time.Now().Unix() }
	}
	return &Engine{
		shards:   shards,
		net:      net,
		proposer: proposer,
		interval: interval,
		clock:    clock,
	}
}

// Shards returns the engine's shard manager, for callers that need to
// read chain height/balances without going through the engine.
func (e *Engine) Shards() *shard.Manager { return e.shards }

// SubmitTransaction admits tx into its sender's shard mempool (or
// starts the cross-shard 2PC protocol, if sender and receiver fall in
// different shards) and gossips it to every connected peer: the entry
// point for injecting a locally signed transaction into the network.
func (e *Engine) SubmitTransaction(tx *types.Transaction) error {
	if err := e.shards.AssignAndSubmit(tx, e.clock(), e.proposer); err != nil {
		return err
	}
	if e.net != nil {
		data, err := json.Marshal(tx)
		if err == nil {
			e.net.BroadcastTransaction(data)
		}
	}
	return nil
}

// Start launches the engine's message loop and one proposal goroutine
// per shard. Calling Start twice without an intervening Stop is a
// no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})

	e.wg.Add(1)
	go e.messageLoop()

	for id := uint32(0); id < shard.NumShards; id++ {
		e.wg.Add(1)
		go e.proposalLoop(id)
	}
	log.Printf("CONSENSUS_ENGINE: started, proposer=%q interval=%s", e.proposer, e.interval)
}

// Stop signals every goroutine to exit and blocks until they have.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	e.wg.Wait()
	log.Printf("CONSENSUS_ENGINE: stopped")
}

// proposalLoop periodically attempts to seal a block for one shard.
// It runs on its own goroutine so a slow PoW mining attempt on one
// shard never delays another shard's proposal or the message loop.
func (e *Engine) proposalLoop(shardID uint32) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.proposeOnce(shardID)
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) proposeOnce(shardID uint32) {
	s, err := e.shards.Shard(shardID)
	if err != nil {
		log.Printf("CONSENSUS_ENGINE: shard %d: %v", shardID, err)
		return
	}

	now := e.clock()
	if pe := s.Chain.PosEngine(); pe != nil {
		pe.AdvanceEpoch(now)
		pe.UnjailExpired(now)
	}

	block, err := s.Chain.Seal(now, e.proposer)
	if err != nil {
		if errors.Is(err, nodeerrors.ErrConsensusError) {
			// Not this node's slot, or no eligible proposer this round —
			// routine, not a failure.
			return
		}
		log.Printf("CONSENSUS_ENGINE: shard %d seal attempt failed: %v", shardID, err)
		return
	}

	applyStakeEffects(s, block)
	e.broadcastBlock(shardID, block)
}

func (e *Engine) broadcastBlock(shardID uint32, block *types.Block) {
	if e.net == nil {
		return
	}
	data, err := json.Marshal(BlockEnvelope{ShardID: shardID, Block: block})
	if err != nil {
		log.Printf("CONSENSUS_ENGINE: encode block envelope shard=%d index=%d: %v", shardID, block.Index, err)
		return
	}
	e.net.BroadcastBlock(data)
}
