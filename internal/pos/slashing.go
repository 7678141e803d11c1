package pos

import (
	"fmt"
	"log"

	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/types"
)

// SubmitEvidence queues slashing evidence for later processing, per
// submit_slashing_evidence. Evidence with an empty validator address or
// empty detail is rejected outright.
func (e *Engine) SubmitEvidence(ev Evidence) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ev.ValidatorAddress == "" || ev.Detail == "" {
		return fmt.Errorf("%w: invalid slashing evidence", nodeerrors.ErrValidatorError)
	}
	if _, ok := e.validators[ev.ValidatorAddress]; !ok {
		return fmt.Errorf("%w: validator %s not found", nodeerrors.ErrValidatorError, ev.ValidatorAddress)
	}
	e.pendingEvidence = append(e.pendingEvidence, ev)
	log.Printf("POS: submitted slashing evidence for %s (%s)", ev.ValidatorAddress, ev.Offense)
	return nil
}

// Slash applies the penalty for a single piece of evidence immediately
// and returns the slashed amount, per slash_validator. Reputation is
// reset to zero, performance halved (floored at 0.1), and
// DoubleSigning/InvalidBlock additionally jail the validator for
// cfg.JailDuration.
func (e *Engine) Slash(ev Evidence) (types.Amount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slashLocked(ev)
}

func (e *Engine) slashLocked(ev Evidence) (types.Amount, error) {
	v, ok := e.validators[ev.ValidatorAddress]
	if !ok {
		return 0, fmt.Errorf("%w: validator %s not found", nodeerrors.ErrValidatorError, ev.ValidatorAddress)
	}

	rate := ev.Offense.penaltyRate()
	slashAmount := types.Amount(float64(v.Stake) * rate)
	v.Stake -= slashAmount
	v.SlashCount++
	ts := ev.Timestamp
	v.LastSlashTime = &ts

	v.ReputationScore = 0
	v.PerformanceScore = maxFloat(v.PerformanceScore*0.5, 0.1)

	if ev.Offense.jails() {
		jailEnd := ev.Timestamp + int64(e.cfg.JailDuration.Seconds())
		v.Jailed = true
		v.JailEndTime = &jailEnd
		v.Active = false
	}
	if v.Stake < e.cfg.MinStake {
		v.Active = false
	}

	log.Printf("POS: slashed validator %s for %s (amount=%s, slash_count=%d)", ev.ValidatorAddress, ev.Offense, slashAmount, v.SlashCount)
	return slashAmount, nil
}

// ProcessPendingEvidence applies every queued evidence entry, per
// process_pending_slashings. Entries that fail to apply (validator
// since removed) are logged and left in the queue for the caller to
// resolve rather than dropped, matching process_pending_slashings'
// retain-based removal: only evidence this call actually slashed is
// cleared.
func (e *Engine) ProcessPendingEvidence() []types.Amount {
	e.mu.Lock()
	defer e.mu.Unlock()

	amounts := make([]types.Amount, 0, len(e.pendingEvidence))
	remaining := e.pendingEvidence[:0:0]
	for _, ev := range e.pendingEvidence {
		amount, err := e.slashLocked(ev)
		if err != nil {
			log.Printf("POS: failed to process slashing evidence for %s: %v", ev.ValidatorAddress, err)
			remaining = append(remaining, ev)
			continue
		}
		amounts = append(amounts, amount)
	}
	e.pendingEvidence = remaining
	return amounts
}

// UnjailExpired releases validators whose jail period has elapsed as
// of now, reactivating them, per unjail_validators.
func (e *Engine) UnjailExpired(now int64) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	for _, v := range e.validators {
		if !v.Jailed || v.JailEndTime == nil {
			continue
		}
		if now >= *v.JailEndTime {
			v.Jailed = false
			v.JailEndTime = nil
			v.Active = true
			count++
			log.Printf("POS: unjailed validator %s", v.Address)
		}
	}
	if count > 0 {
		log.Printf("POS: unjailed %d validators", count)
	}
	return count
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
