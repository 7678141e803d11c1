// Package pow implements the proof-of-work mining path of §4.4: nonce
// search, difficulty validation, and retargeting. Grounded on
// original_source/src/proof_of_work.rs's ProofOfWork type, adapted to
// the Go idiom the teacher uses for its own consensus helpers
// (internal/consensus/validation.go): plain structs with methods, no
// builder pattern.
package pow

import (
	"fmt"
	"log"
	"time"

	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/types"
)

const maxDifficulty = 32

// Engine mines and validates blocks under a fixed difficulty and
// attempt budget.
type Engine struct {
	Difficulty  uint32
	MaxAttempts uint64
}

// New constructs an Engine. Difficulty above 32 is rejected per the
// original's bound.
func New(difficulty uint32, maxAttempts uint64) (*Engine, error) {
	if difficulty > maxDifficulty {
		return nil, fmt.Errorf("%w: difficulty %d exceeds maximum %d", nodeerrors.ErrInvalidProofOfWork, difficulty, maxDifficulty)
	}
	return &Engine{Difficulty: difficulty, MaxAttempts: maxAttempts}, nil
}

// DefaultEngine mirrors ProofOfWork::new_default (difficulty 4,
// max_attempts 1,000,000).
func DefaultEngine() *Engine {
	e, _ := New(4, 1_000_000)
	return e
}

// Mine searches for a nonce such that block.ComputeHash() meets the
// engine's difficulty, mutating block.Nonce and block.Hash in place.
// Mirrors ProofOfWork::mine, logging progress every 10,000 attempts.
func (e *Engine) Mine(block *types.Block) error {
	start := time.Now()
	log.Printf("POW: starting mining with difficulty %d", e.Difficulty)

	for attempt := uint64(1); ; attempt++ {
		if attempt > e.MaxAttempts {
			return fmt.Errorf("%w: mining timeout after %d attempts", nodeerrors.ErrMiningTimeout, e.MaxAttempts)
		}
		block.Nonce = attempt
		hash := block.ComputeHash()
		if types.MeetsDifficulty(hash, e.Difficulty) {
			block.Hash = hash
			log.Printf("POW: mining successful nonce=%d hash=%s attempts=%d time=%s", attempt, hash, attempt, time.Since(start))
			return nil
		}
		if attempt%10000 == 0 {
			log.Printf("POW: mining attempt %d: %s", attempt, hash)
		}
	}
}

// ValidateHash reports whether hash meets e's difficulty.
func (e *Engine) ValidateHash(hash string) bool {
	return types.MeetsDifficulty(hash, e.Difficulty)
}

// ValidateSolution recomputes block's hash from its fields and checks
// it both matches block.Hash and meets e's difficulty, per
// validate_solution.
func (e *Engine) ValidateSolution(block *types.Block) error {
	recomputed := block.ComputeHash()
	if recomputed != block.Hash {
		return fmt.Errorf("%w: hash mismatch: expected %s, got %s", nodeerrors.ErrInvalidHash, recomputed, block.Hash)
	}
	if !e.ValidateHash(block.Hash) {
		return fmt.Errorf("%w: hash %s does not meet difficulty requirement of %d leading zeros", nodeerrors.ErrInvalidProofOfWork, block.Hash, e.Difficulty)
	}
	return nil
}

// AdjustDifficulty retargets difficulty based on the ratio of actual
// to target mining time, per adjust_difficulty: ratio > 1.5 decrements,
// ratio < 0.5 increments, clamped to [1, 32]. Mutates e.Difficulty and
// returns the new value.
func (e *Engine) AdjustDifficulty(targetSeconds, actualSeconds float64) uint32 {
	ratio := actualSeconds / targetSeconds
	newDifficulty := float64(e.Difficulty)

	switch {
	case ratio > 1.5:
		newDifficulty--
	case ratio < 0.5:
		newDifficulty++
	}

	if newDifficulty < 1 {
		newDifficulty = 1
	} else if newDifficulty > maxDifficulty {
		newDifficulty = maxDifficulty
	}

	log.Printf("POW: adjusting difficulty from %d to %d (ratio: %.2f)", e.Difficulty, uint32(newDifficulty), ratio)
	e.Difficulty = uint32(newDifficulty)
	return e.Difficulty
}
