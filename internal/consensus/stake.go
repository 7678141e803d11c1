package consensus

import (
	"log"

	"gillean.network/gillean/internal/shard"
	"gillean.network/gillean/internal/types"
)

// applyStakeEffects walks a newly-sealed or newly-accepted block's
// transactions and applies the ones internal/chain's balance ledger
// alone can't express: Stake/Unstake change a validator's weight in
// internal/pos's registry, not just an account balance. internal/chain
// deliberately only tracks the balance side of these (see
// chain.AddTransaction's doc comment); this is the one place that
// holds both a *chain.Blockchain and its *pos.Engine together, so it
// is where that wiring belongs.
func applyStakeEffects(s *shard.Shard, block *types.Block) {
	pe := s.Chain.PosEngine()
	if pe == nil {
		return // proof-of-work shard, no validator registry to update
	}
	for _, tx := range block.Transactions {
		switch tx.Kind {
		case types.Stake:
			if err := pe.AddStake(tx.Sender, tx.Amount); err != nil {
				// Not yet registered: a Stake transaction from a brand new
				// address both registers and funds the validator.
				if regErr := pe.Register(tx.Sender, nil, tx.Amount); regErr != nil {
					log.Printf("CONSENSUS_ENGINE: shard %d: stake tx from %s neither topped up an existing validator (%v) nor registered a new one (%v)", s.ID, tx.Sender, err, regErr)
				}
			}
		case types.Unstake:
			if err := pe.RemoveStake(tx.Sender, tx.Amount); err != nil {
				log.Printf("CONSENSUS_ENGINE: shard %d: unstake tx from %s rejected by validator registry: %v", s.ID, tx.Sender, err)
			}
		}
	}
}
