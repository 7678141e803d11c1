package shard

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gillean.network/gillean/internal/chain"
	"gillean.network/gillean/internal/crypto"
	"gillean.network/gillean/internal/pow"
	"gillean.network/gillean/internal/types"
)

func TestShardOfIsDeterministicAndBounded(t *testing.T) {
	a := ShardOf("GILsomeaddress000000000000000000000000")
	b := ShardOf("GILsomeaddress000000000000000000000000")
	require.Equal(t, a, b)
	require.Less(t, a, uint32(NumShards))
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(chain.ModeProofOfWork, func() *pow.Engine {
		e, _ := pow.New(1, 1_000_000)
		return e
	}, nil, 1700000000)
	require.NoError(t, err)
	return m
}

// findCrossShardPair brute-forces a sender/receiver pair
// whose addresses land on different shards, so the cross-shard path
// is actually exercised.
func findCrossShardPair(t *testing.T) (senderSK []byte, senderPK []byte, senderAddr, receiverAddr string) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		sk, pk, err := crypto.GenerateKeypair()
		require.NoError(t, err)
		addr, err := crypto.AddressFromPublicKey(pk)
		require.NoError(t, err)
		_, pk2, err := crypto.GenerateKeypair()
		require.NoError(t, err)
		addr2, err := crypto.AddressFromPublicKey(pk2)
		require.NoError(t, err)
		if ShardOf(addr) != ShardOf(addr2) {
			return sk, pk, addr, addr2
		}
	}
	t.Fatal("could not find a cross-shard address pair")
	return nil, nil, "", ""
}

func TestAssignAndSubmitSameShardGoesToMempool(t *testing.T) {
	m := newTestManager(t)
	sk, pk, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	addr, err := crypto.AddressFromPublicKey(pk)
	require.NoError(t, err)

	s, err := m.Shard(ShardOf(addr))
	require.NoError(t, err)
	s.Chain.RegisterPublicKey(addr, pk)
	require.NoError(t, s.Chain.CreditGenesis(addr, types.FromFloat64(100)))

	tx := &types.Transaction{Kind: types.Transfer, Sender: addr, Receiver: addr, Amount: types.FromFloat64(1), Timestamp: 1700000001, Nonce: 1}
	require.NoError(t, tx.Sign(sk, pk))
	require.NoError(t, m.AssignAndSubmit(tx, 1700000001, ""))
}

func TestCrossShardTransferCommitsBothLegs(t *testing.T) {
	m := newTestManager(t)
	sk, pk, senderAddr, receiverAddr := findCrossShardPair(t)

	sourceShard, err := m.Shard(ShardOf(senderAddr))
	require.NoError(t, err)
	sourceShard.Chain.RegisterPublicKey(senderAddr, pk)
	require.NoError(t, sourceShard.Chain.CreditGenesis(senderAddr, types.FromFloat64(500)))

	targetShard, err := m.Shard(ShardOf(receiverAddr))
	require.NoError(t, err)

	sourceHeightBefore := sourceShard.Chain.CurrentHeight()
	targetHeightBefore := targetShard.Chain.CurrentHeight()

	tx := &types.Transaction{Kind: types.Transfer, Sender: senderAddr, Receiver: receiverAddr, Amount: types.FromFloat64(200), Timestamp: 1700000001, Nonce: 1}
	require.NoError(t, tx.Sign(sk, pk))

	require.NoError(t, m.AssignAndSubmit(tx, 1700000002, ""))

	require.Equal(t, types.FromFloat64(300), sourceShard.Chain.Balance(senderAddr))
	require.Equal(t, types.FromFloat64(200), targetShard.Chain.Balance(receiverAddr))

	// Each shard must have finalized its half of the transfer into a
	// real block, not just a balance mutation.
	require.Equal(t, sourceHeightBefore+1, sourceShard.Chain.CurrentHeight())
	require.Equal(t, targetHeightBefore+1, targetShard.Chain.CurrentHeight())

	sourceTip := sourceShard.Chain.Tip()
	require.Len(t, sourceTip.Transactions, 1)
	require.Equal(t, tx.ID, sourceTip.Transactions[0].ID)

	targetTip := targetShard.Chain.Tip()
	require.Len(t, targetTip.Transactions, 1)
	require.Equal(t, tx.ID, targetTip.Transactions[0].ID)
}

func TestCrossShardTransferFailsPrepareOnInsufficientBalance(t *testing.T) {
	m := newTestManager(t)
	sk, pk, senderAddr, receiverAddr := findCrossShardPair(t)

	sourceShard, err := m.Shard(ShardOf(senderAddr))
	require.NoError(t, err)
	sourceShard.Chain.RegisterPublicKey(senderAddr, pk)
	heightBefore := sourceShard.Chain.CurrentHeight()

	tx := &types.Transaction{Kind: types.Transfer, Sender: senderAddr, Receiver: receiverAddr, Amount: types.FromFloat64(1), Timestamp: 1700000001, Nonce: 1}
	require.NoError(t, tx.Sign(sk, pk))

	err = m.AssignAndSubmit(tx, 1700000002, "")
	require.Error(t, err)
	require.Equal(t, types.Amount(0), sourceShard.Chain.Balance(senderAddr))
	require.Equal(t, heightBefore, sourceShard.Chain.CurrentHeight())
}
