package pow

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gillean.network/gillean/internal/types"
)

func TestNewRejectsExcessiveDifficulty(t *testing.T) {
	_, err := New(33, 1000)
	require.Error(t, err)
}

func TestMineProducesValidatableSolution(t *testing.T) {
	e, err := New(2, 1_000_000)
	require.NoError(t, err)

	block := &types.Block{Index: 1, Timestamp: 1700000000, PreviousHash: types.ZeroHash}
	block.MerkleRoot = block.ComputeMerkleRoot()

	require.NoError(t, e.Mine(block))
	require.NoError(t, e.ValidateSolution(block))
	require.True(t, e.ValidateHash(block.Hash))
}

func TestMineTimesOut(t *testing.T) {
	e, err := New(32, 5)
	require.NoError(t, err)

	block := &types.Block{Index: 1, Timestamp: 1700000000, PreviousHash: types.ZeroHash}
	block.MerkleRoot = block.ComputeMerkleRoot()

	require.Error(t, e.Mine(block))
}

func TestValidateSolutionRejectsTamperedHash(t *testing.T) {
	e, err := New(2, 1_000_000)
	require.NoError(t, err)

	block := &types.Block{Index: 1, Timestamp: 1700000000, PreviousHash: types.ZeroHash}
	block.MerkleRoot = block.ComputeMerkleRoot()
	require.NoError(t, e.Mine(block))

	block.Hash = "tampered"
	require.Error(t, e.ValidateSolution(block))
}

func TestAdjustDifficultyBounds(t *testing.T) {
	e := &Engine{Difficulty: 1, MaxAttempts: 1000}
	require.Equal(t, uint32(1), e.AdjustDifficulty(10, 30)) // ratio 3 > 1.5 but floored at 1

	e.Difficulty = 32
	require.Equal(t, uint32(32), e.AdjustDifficulty(30, 5)) // ratio < 0.5 but capped at 32

	e.Difficulty = 10
	require.Equal(t, uint32(9), e.AdjustDifficulty(10, 20)) // ratio 2.0 > 1.5
	e.Difficulty = 10
	require.Equal(t, uint32(11), e.AdjustDifficulty(10, 3)) // ratio 0.3 < 0.5
}
