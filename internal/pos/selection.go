package pos

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"

	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/types"
)

// SelectProposer deterministically picks the proposer for blockHeight
// given previousBlockHash, per §4.3. The seed is
// sha256(block_height || previous_hash || current_epoch || selection_seed),
// interpreted little-endian over its first 8 bytes as a selection
// value, exactly as original_source/src/consensus.rs::select_validator
// computes it.
//
// Eligible validators are iterated in address-sorted order rather than
// map order before the weighted cumulative scan: the Rust original
// iterates a HashMap, whose order is not guaranteed stable across
// processes, which would make selection non-deterministic across
// independently-run nodes. Sorting first restores the determinism the
// property is named for.
func (e *Engine) SelectProposer(blockHeight uint64, previousBlockHash string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.selectProposerLocked(blockHeight, previousBlockHash)
}

func (e *Engine) selectProposerLocked(blockHeight uint64, previousBlockHash string) (string, error) {
	if len(e.validators) == 0 {
		return "", fmt.Errorf("%w: no registered validators", nodeerrors.ErrValidatorError)
	}

	eligible := make([]*types.Validator, 0, len(e.validators))
	for _, v := range e.validators {
		if v.Eligible() {
			eligible = append(eligible, v)
		}
	}
	if len(eligible) == 0 {
		return "", fmt.Errorf("%w: no eligible validators", nodeerrors.ErrValidatorError)
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Address < eligible[j].Address })

	var totalWeight float64
	for _, v := range eligible {
		totalWeight += v.Weight()
	}
	if totalWeight <= 0 {
		return "", fmt.Errorf("%w: total eligible weight is zero", nodeerrors.ErrValidatorError)
	}

	seedData := strconv.FormatUint(blockHeight, 10) + previousBlockHash + strconv.FormatUint(e.currentEpoch, 10) + e.selectionSeed
	digest := sha256.Sum256([]byte(seedData))
	seedValue := binary.LittleEndian.Uint64(digest[:8])

	selection := (float64(seedValue) / float64(^uint64(0))) * totalWeight
	for _, v := range eligible {
		w := v.Weight()
		if selection <= w {
			return v.Address, nil
		}
		selection -= w
	}
	return eligible[0].Address, nil
}
