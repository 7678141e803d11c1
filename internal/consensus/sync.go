package consensus

import (
	"encoding/json"
	"log"

	"gillean.network/gillean/internal/network"
	"gillean.network/gillean/internal/types"
)

// messageLoop is the engine's single event-loop goroutine: it never
// mines or seals, only routes gossip arriving from internal/network
// into the shard manager and replies to sync requests. Kept separate
// from proposalLoop so a slow PoW attempt never delays message
// handling (§5).
func (e *Engine) messageLoop() {
	defer e.wg.Done()
	if e.net == nil {
		<-e.stopCh
		return
	}
	for {
		select {
		case data := <-e.net.BlockBroadcast:
			e.handleIncomingBlock(data)
		case data := <-e.net.TransactionBroadcast:
			e.handleIncomingTransaction(data)
		case req := <-e.net.SyncRequests:
			e.handleSyncRequest(req)
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) handleIncomingBlock(data []byte) {
	var env BlockEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("CONSENSUS_ENGINE: malformed block gossip: %v", err)
		return
	}
	if env.Block == nil {
		log.Printf("CONSENSUS_ENGINE: block gossip for shard %d carried no block", env.ShardID)
		return
	}
	s, err := e.shards.Shard(env.ShardID)
	if err != nil {
		log.Printf("CONSENSUS_ENGINE: %v", err)
		return
	}
	if err := s.Chain.AppendExternal(env.Block); err != nil {
		log.Printf("CONSENSUS_ENGINE: rejected gossiped block shard=%d index=%d: %v", env.ShardID, env.Block.Index, err)
		return
	}
	applyStakeEffects(s, env.Block)
}

func (e *Engine) handleIncomingTransaction(data []byte) {
	var tx types.Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		log.Printf("CONSENSUS_ENGINE: malformed transaction gossip: %v", err)
		return
	}
	if err := e.shards.AssignAndSubmit(&tx, e.clock(), e.proposer); err != nil {
		log.Printf("CONSENSUS_ENGINE: rejected gossiped transaction %s: %v", tx.IDHex(), err)
	}
}

func (e *Engine) handleSyncRequest(req network.SyncRequestEnvelope) {
	s, err := e.shards.Shard(req.Request.ShardID)
	if err != nil {
		log.Printf("CONSENSUS_ENGINE: sync request for unknown shard %d", req.Request.ShardID)
		return
	}
	height := s.Chain.CurrentHeight()
	if height < 0 {
		return
	}
	blocks := make([][]byte, 0)
	for i := req.Request.FromHeight; i <= uint64(height); i++ {
		block, err := s.Chain.BlockByIndex(i)
		if err != nil {
			log.Printf("CONSENSUS_ENGINE: sync request shard=%d: %v", req.Request.ShardID, err)
			break
		}
		data, err := json.Marshal(block)
		if err != nil {
			log.Printf("CONSENSUS_ENGINE: encode block %d for sync response: %v", i, err)
			break
		}
		blocks = append(blocks, data)
	}
	e.net.SendSyncResponse(req.Peer, blocks)
}
