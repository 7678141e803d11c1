package pos

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"

	"gillean.network/gillean/internal/types"
)

// AdvanceEpoch rolls the engine into a new epoch if EpochDuration has
// elapsed since the last change, regenerating the selection seed from
// the new epoch number, now, and a fixed domain tag, per update_epoch.
// Returns the new EpochInfo, or nil if no rollover occurred.
func (e *Engine) AdvanceEpoch(now int64) *EpochInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	if now-e.lastEpochChange < int64(e.cfg.EpochDuration.Seconds()) {
		return nil
	}
	e.currentEpoch++
	e.lastEpochChange = now

	h := sha256.New()
	h.Write([]byte(strconv.FormatUint(e.currentEpoch, 10)))
	h.Write([]byte(strconv.FormatInt(now, 10)))
	h.Write([]byte("epoch_seed"))
	e.selectionSeed = hex.EncodeToString(h.Sum(nil))

	addrs := make([]string, 0, len(e.validators))
	for addr := range e.validators {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	info := &EpochInfo{
		Epoch:         e.currentEpoch,
		StartTime:     now,
		EndTime:       now + int64(e.cfg.EpochDuration.Seconds()),
		Validators:    addrs,
		SelectionSeed: e.selectionSeed,
	}
	e.currentEpochInfo = info
	return info
}

// CurrentEpoch returns the current epoch number.
func (e *Engine) CurrentEpoch() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentEpoch
}

// DistributeRewards splits totalRewards across active validators in
// proportion to their stake, per distribute_rewards.
func (e *Engine) DistributeRewards(totalRewards types.Amount) map[string]types.Amount {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rewards := make(map[string]types.Amount)
	if len(e.validators) == 0 || totalRewards <= 0 {
		return rewards
	}

	var totalStake types.Amount
	for _, v := range e.validators {
		if v.Active {
			totalStake += v.Stake
		}
	}
	if totalStake == 0 {
		return rewards
	}

	for addr, v := range e.validators {
		if !v.Active {
			continue
		}
		share := (float64(v.Stake) / float64(totalStake)) * float64(totalRewards)
		rewards[addr] = types.Amount(share)
	}
	return rewards
}
