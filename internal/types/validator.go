package types

// Validator is a registered staking participant (§3). The PoS engine
// (internal/pos) owns all mutation of validator state; this type is
// the plain data shape shared across packages (storage, chain,
// network) that need to read or persist it.
type Validator struct {
	Address            string
	PublicKey          []byte
	Stake              Amount
	Active             bool
	Jailed             bool
	JailEndTime        *int64
	PerformanceScore   float64
	ReputationScore    float64
	BlocksValidated    uint64
	ValidationFailures uint64
	SlashCount         uint64
	LastSlashTime      *int64
}

// Weight returns stake*performance*reputation for an eligible
// validator and 0 for one that is not (§3), so Weight > 0 implies the
// validator is eligible for selection.
func (v *Validator) Weight() float64 {
	if !v.Eligible() {
		return 0
	}
	return float64(v.Stake) * v.PerformanceScore * v.ReputationScore
}

// Eligible reports whether v can be selected for a slot (§4.3).
func (v *Validator) Eligible() bool {
	return v.Active && !v.Jailed && v.Stake > 0
}
