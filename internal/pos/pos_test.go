package pos

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gillean.network/gillean/internal/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	e, err := New(cfg, 1_700_000_000)
	require.NoError(t, err)
	return e
}

func TestRegisterValidatorEnforcesMinStake(t *testing.T) {
	e := newTestEngine(t)
	err := e.Register("GILvalidator1", nil, types.FromFloat64(10))
	require.Error(t, err)

	require.NoError(t, e.Register("GILvalidator1", nil, types.FromFloat64(2000)))
	require.Error(t, e.Register("GILvalidator1", nil, types.FromFloat64(2000)))
}

func TestSelectProposerDeterministic(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register("GILvalidatorA", nil, types.FromFloat64(5000)))
	require.NoError(t, e.Register("GILvalidatorB", nil, types.FromFloat64(3000)))
	require.NoError(t, e.Register("GILvalidatorC", nil, types.FromFloat64(1000)))

	p1, err := e.SelectProposer(10, "deadbeef")
	require.NoError(t, err)
	p2, err := e.SelectProposer(10, "deadbeef")
	require.NoError(t, err)
	require.Equal(t, p1, p2)

	p3, err := e.SelectProposer(11, "deadbeef")
	require.NoError(t, err)
	require.NotEmpty(t, p3)
}

func TestSelectProposerExcludesJailedAndInactive(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register("GILonly", nil, types.FromFloat64(5000)))
	_, err := e.Slash(Evidence{ValidatorAddress: "GILonly", Offense: DoubleSigning, Detail: "equivocated", Timestamp: 1_700_000_100})
	require.NoError(t, err)

	_, err = e.SelectProposer(1, "abc")
	require.Error(t, err)
}

func TestSlashDoubleSigningJailsAndPenalizes(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register("GILval", nil, types.FromFloat64(10000)))

	amount, err := e.Slash(Evidence{
		ValidatorAddress: "GILval",
		Offense:          DoubleSigning,
		Detail:           "conflicting blocks at height 5",
		Timestamp:        1_700_000_100,
	})
	require.NoError(t, err)
	require.Equal(t, types.FromFloat64(5000), amount)

	v, ok := e.Validator("GILval")
	require.True(t, ok)
	require.True(t, v.Jailed)
	require.False(t, v.Active)
	require.Equal(t, uint64(1), v.SlashCount)
	require.Equal(t, 0.0, v.ReputationScore)
}

func TestProcessPendingEvidenceKeepsFailedEntriesQueued(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register("GILval", nil, types.FromFloat64(10000)))

	good := Evidence{ValidatorAddress: "GILval", Offense: DoubleSigning, Detail: "conflicting blocks at height 5", Timestamp: 1_700_000_100}
	require.NoError(t, e.SubmitEvidence(good))

	// Simulate evidence for a validator that no longer exists by the
	// time processing runs: slashLocked will fail for it, and that
	// failure must leave the entry queued rather than discard it.
	ghost := Evidence{ValidatorAddress: "GILghost", Offense: InvalidBlock, Detail: "bad block", Timestamp: 1_700_000_100}
	e.mu.Lock()
	e.pendingEvidence = append(e.pendingEvidence, ghost)
	e.mu.Unlock()

	amounts := e.ProcessPendingEvidence()
	require.Len(t, amounts, 1)

	e.mu.RLock()
	remaining := append([]Evidence{}, e.pendingEvidence...)
	e.mu.RUnlock()
	require.Len(t, remaining, 1)
	require.Equal(t, "GILghost", remaining[0].ValidatorAddress)

	// Once the validator exists, a later call finally processes and
	// clears it.
	require.NoError(t, e.Register("GILghost", nil, types.FromFloat64(10000)))
	amounts2 := e.ProcessPendingEvidence()
	require.Len(t, amounts2, 1)

	e.mu.RLock()
	defer e.mu.RUnlock()
	require.Empty(t, e.pendingEvidence)
}

func TestUnjailExpiredReactivates(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register("GILval", nil, types.FromFloat64(10000)))
	_, err := e.Slash(Evidence{ValidatorAddress: "GILval", Offense: InvalidBlock, Detail: "bad block", Timestamp: 1_700_000_000})
	require.NoError(t, err)

	require.Equal(t, 0, e.UnjailExpired(1_700_000_001))

	jailEnd := int64(1_700_000_000) + int64(e.cfg.JailDuration.Seconds())
	require.Equal(t, 1, e.UnjailExpired(jailEnd))

	v, _ := e.Validator("GILval")
	require.False(t, v.Jailed)
	require.True(t, v.Active)
}

func TestFinalizeBlockRequiresThreshold(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register("GILa", nil, types.FromFloat64(2000)))
	require.NoError(t, e.Register("GILb", nil, types.FromFloat64(2000)))
	require.NoError(t, e.Register("GILc", nil, types.FromFloat64(2000)))

	_, err := e.FinalizeBlock("blockhash1", []string{"GILa"}, 1_700_000_200)
	require.Error(t, err)

	proof, err := e.FinalizeBlock("blockhash1", []string{"GILa", "GILb", "GILc"}, 1_700_000_200)
	require.NoError(t, err)
	require.Equal(t, "blockhash1", proof.BlockHash)
	require.True(t, e.IsFinalized("blockhash1"))
}

func TestFinalizeBlockRejectsUnknownSigner(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register("GILa", nil, types.FromFloat64(2000)))
	_, err := e.FinalizeBlock("blockhash2", []string{"GILa", "GILghost"}, 1_700_000_200)
	require.Error(t, err)
}

func TestDistributeRewardsProportionalToStake(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register("GILa", nil, types.FromFloat64(3000)))
	require.NoError(t, e.Register("GILb", nil, types.FromFloat64(1000)))

	rewards := e.DistributeRewards(types.FromFloat64(400))
	require.InDelta(t, 300, rewards["GILa"].Float64(), 0.001)
	require.InDelta(t, 100, rewards["GILb"].Float64(), 0.001)
}

func TestAdvanceEpochRotatesSeed(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register("GILa", nil, types.FromFloat64(2000)))

	require.Nil(t, e.AdvanceEpoch(1_700_000_100))

	info := e.AdvanceEpoch(1_700_086_400 + 1)
	require.NotNil(t, info)
	require.Equal(t, uint64(1), info.Epoch)
	require.Equal(t, uint64(1), e.CurrentEpoch())
}
