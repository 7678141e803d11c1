package pos

import (
	"fmt"
	"math"

	"gillean.network/gillean/internal/nodeerrors"
)

// FinalityProof records a finalized block hash with the signatures and
// epoch that finalized it, per §4.3's finalize_block.
type FinalityProof struct {
	BlockHash string
	Signers   []string
	Timestamp int64
	Epoch     uint64
}

// requiredSignaturesLocked returns ceil(validator_count * finality_threshold).
func (e *Engine) requiredSignaturesLocked() int {
	return int(math.Ceil(float64(len(e.validators)) * e.cfg.FinalityThreshold))
}

// FinalizeBlock checks that sigs contains at least the finality
// threshold's worth of distinct, currently-registered validator
// signatures and, if so, records the block hash as finalized. Mirrors
// finalize_block, including its all-or-nothing validation of signers.
func (e *Engine) FinalizeBlock(blockHash string, signers []string, now int64) (*FinalityProof, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	required := e.requiredSignaturesLocked()
	if len(signers) < required {
		return nil, fmt.Errorf("%w: insufficient signatures for finality: %d < %d", nodeerrors.ErrConsensusError, len(signers), required)
	}

	seen := make(map[string]struct{}, len(signers))
	for _, s := range signers {
		if _, ok := e.validators[s]; !ok {
			return nil, fmt.Errorf("%w: invalid validator signer %s", nodeerrors.ErrConsensusError, s)
		}
		seen[s] = struct{}{}
	}
	if len(seen) < required {
		return nil, fmt.Errorf("%w: insufficient distinct signatures for finality: %d < %d", nodeerrors.ErrConsensusError, len(seen), required)
	}

	proof := &FinalityProof{
		BlockHash: blockHash,
		Signers:   signers,
		Timestamp: now,
		Epoch:     e.currentEpoch,
	}
	e.finalizedBlocks[blockHash] = struct{}{}
	return proof, nil
}

// IsFinalized reports whether blockHash has already been finalized.
func (e *Engine) IsFinalized(blockHash string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.finalizedBlocks[blockHash]
	return ok
}

// RecordValidation updates a validator's performance score after a
// block validation attempt, per Validator::update_performance:
// success nudges performance up by 0.01 (capped at 1.0) and increments
// BlocksValidated; failure drops it by 0.1 (floored at 0.0) and
// increments ValidationFailures.
func (e *Engine) RecordValidation(address string, success bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.validators[address]
	if !ok {
		return fmt.Errorf("%w: validator %s not found", nodeerrors.ErrValidatorError, address)
	}
	if success {
		v.BlocksValidated++
		v.PerformanceScore = math.Min(v.PerformanceScore+0.01, 1.0)
	} else {
		v.ValidationFailures++
		v.PerformanceScore = math.Max(v.PerformanceScore-0.1, 0.0)
	}
	return nil
}

// RecordReputation nudges a validator's reputation score after
// off-chain behavior observation (liveness pings, gossip quality),
// per Validator::update_reputation.
func (e *Engine) RecordReputation(address string, positive bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.validators[address]
	if !ok {
		return fmt.Errorf("%w: validator %s not found", nodeerrors.ErrValidatorError, address)
	}
	if positive {
		v.ReputationScore = math.Min(v.ReputationScore+0.01, 1.0)
	} else {
		v.ReputationScore = math.Max(v.ReputationScore-0.05, 0.0)
	}
	return nil
}
