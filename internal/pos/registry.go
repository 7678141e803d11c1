// Package pos implements the Proof-of-Stake validator registry, weighted
// proposer selection, slashing, jailing, epoch rotation, and block
// finality described in §4.3. It generalizes the teacher's
// internal/consensus.ConsensusState into a domain whose proposer set is
// stake-weighted rather than fixed, following the algorithm of
// original_source/src/consensus.rs.
package pos

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/types"
)

// Config tunes the PoS engine, mirroring ProofOfStake::new's parameters
// plus the fixed constants the original hardcodes (epoch duration,
// finality threshold, jail duration).
type Config struct {
	MinStake          types.Amount
	MaxValidators     int
	EpochDuration     time.Duration
	FinalityThreshold float64 // fraction of validators required to sign, e.g. 0.67
	JailDuration      time.Duration
}

// DefaultConfig mirrors ProofOfStake::new_default (min_stake=1000,
// max_validators=100, finality_threshold=0.67, jail_duration=24h).
func DefaultConfig() Config {
	return Config{
		MinStake:          types.FromFloat64(1000),
		MaxValidators:     100,
		EpochDuration:     24 * time.Hour,
		FinalityThreshold: 0.67,
		JailDuration:      24 * time.Hour,
	}
}

// Slashing penalty rates per offense kind (§4.3).
const (
	penaltyDoubleSigning   = 0.50
	penaltyInvalidBlock    = 0.10
	penaltyUnavailability  = 0.05
	penaltyLivenessFailure = 0.01
)

// OffenseKind enumerates slashable offenses (§4.3).
type OffenseKind int

const (
	DoubleSigning OffenseKind = iota
	InvalidBlock
	Unavailability
	LivenessFailure
)

func (k OffenseKind) String() string {
	switch k {
	case DoubleSigning:
		return "DoubleSigning"
	case InvalidBlock:
		return "InvalidBlock"
	case Unavailability:
		return "Unavailability"
	case LivenessFailure:
		return "LivenessFailure"
	default:
		return "Unknown"
	}
}

func (k OffenseKind) penaltyRate() float64 {
	switch k {
	case DoubleSigning:
		return penaltyDoubleSigning
	case InvalidBlock:
		return penaltyInvalidBlock
	case Unavailability:
		return penaltyUnavailability
	case LivenessFailure:
		return penaltyLivenessFailure
	default:
		return 0
	}
}

// jails reports whether an offense results in jailing + deactivation
// (§4.3: DoubleSigning and InvalidBlock are jailing offenses).
func (k OffenseKind) jails() bool {
	return k == DoubleSigning || k == InvalidBlock
}

// Evidence of a slashable offense (§4.3).
type Evidence struct {
	ValidatorAddress string
	Offense          OffenseKind
	Detail           string
	Reporter         string
	Timestamp        int64
}

// EpochInfo describes a completed epoch rollover.
type EpochInfo struct {
	Epoch          uint64
	StartTime      int64
	EndTime        int64
	Validators     []string
	SelectionSeed  string
}

// Engine holds validator state and implements selection, slashing, and
// finality. All exported methods lock; xxxLocked variants assume the
// caller already holds mu, following the teacher's RWMutex convention
// (internal/blockchain.Blockchain, internal/network.SimulatedNetwork).
type Engine struct {
	mu sync.RWMutex

	cfg Config

	validators map[string]*types.Validator

	currentEpoch     uint64
	lastEpochChange  int64
	selectionSeed    string
	currentEpochInfo *EpochInfo

	pendingEvidence []Evidence
	finalizedBlocks map[string]struct{}
}

// New constructs an Engine. MinStake must be positive and MaxValidators
// at least 1, mirroring ProofOfStake::new's validation.
func New(cfg Config, now int64) (*Engine, error) {
	if cfg.MinStake <= 0 {
		return nil, fmt.Errorf("%w: minimum stake must be positive", nodeerrors.ErrStakingError)
	}
	if cfg.MaxValidators <= 0 {
		return nil, fmt.Errorf("%w: maximum validators must be greater than 0", nodeerrors.ErrStakingError)
	}
	e := &Engine{
		cfg:             cfg,
		validators:      make(map[string]*types.Validator),
		lastEpochChange: now,
		finalizedBlocks: make(map[string]struct{}),
	}
	log.Printf("POS: created engine with min_stake=%s max_validators=%d", cfg.MinStake, cfg.MaxValidators)
	return e, nil
}

// Register adds a new validator with the given stake. Fails if the
// stake is below the minimum, the registry is full, or the address is
// already registered (§4.3).
func (e *Engine) Register(address string, publicKey []byte, stake types.Amount) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if stake < e.cfg.MinStake {
		return fmt.Errorf("%w: stake %s below minimum %s", nodeerrors.ErrStakingError, stake, e.cfg.MinStake)
	}
	if len(e.validators) >= e.cfg.MaxValidators {
		return fmt.Errorf("%w: maximum number of validators reached", nodeerrors.ErrStakingError)
	}
	if _, exists := e.validators[address]; exists {
		return fmt.Errorf("%w: validator %s already registered", nodeerrors.ErrStakingError, address)
	}

	e.validators[address] = &types.Validator{
		Address:          address,
		PublicKey:        publicKey,
		Stake:            stake,
		Active:           true,
		PerformanceScore: 1.0,
		ReputationScore:  1.0,
	}
	log.Printf("POS: registered validator %s with stake %s", address, stake)
	return nil
}

// Validator returns a copy of the named validator's state.
func (e *Engine) Validator(address string) (types.Validator, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.validators[address]
	if !ok {
		return types.Validator{}, false
	}
	return *v, true
}

// Validators returns a copy of all validators, sorted by address for
// deterministic iteration.
func (e *Engine) Validators() []types.Validator {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]types.Validator, 0, len(e.validators))
	for _, v := range e.validators {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// AddStake increases a validator's stake (the Stake transaction path,
// §4.3 / process_staking_transaction).
func (e *Engine) AddStake(address string, amount types.Amount) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.validators[address]
	if !ok {
		return fmt.Errorf("%w: validator %s not found", nodeerrors.ErrStakingError, address)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: stake amount must be positive", nodeerrors.ErrStakingError)
	}
	v.Stake += amount
	return nil
}

// RemoveStake decreases a validator's stake (the Unstake transaction
// path). The validator is deactivated if its stake falls below the
// minimum, matching process_staking_transaction's unstake branch.
func (e *Engine) RemoveStake(address string, amount types.Amount) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.validators[address]
	if !ok {
		return fmt.Errorf("%w: validator %s not found", nodeerrors.ErrStakingError, address)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: unstake amount must be positive", nodeerrors.ErrStakingError)
	}
	if amount > v.Stake {
		return fmt.Errorf("%w: cannot unstake more than current stake", nodeerrors.ErrStakingError)
	}
	v.Stake -= amount
	if v.Stake < e.cfg.MinStake {
		v.Active = false
		log.Printf("POS: deactivated validator %s due to insufficient stake", address)
	}
	return nil
}
