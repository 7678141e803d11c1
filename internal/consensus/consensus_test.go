package consensus

import (
	"crypto/ed25519"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gillean.network/gillean/internal/chain"
	"gillean.network/gillean/internal/crypto"
	"gillean.network/gillean/internal/pos"
	"gillean.network/gillean/internal/pow"
	"gillean.network/gillean/internal/shard"
	"gillean.network/gillean/internal/types"
)

func newSignedTransfer(t *testing.T, sk ed25519.PrivateKey, pk ed25519.PublicKey, sender, receiver string, amount types.Amount, nonce uint64) *types.Transaction {
	t.Helper()
	tx := &types.Transaction{
		Kind:      types.Transfer,
		Sender:    sender,
		Receiver:  receiver,
		Amount:    amount,
		Timestamp: 1_700_000_000,
		Nonce:     nonce,
	}
	require.NoError(t, tx.Sign(sk, pk))
	return tx
}

func newPowShardManager(t *testing.T) *shard.Manager {
	t.Helper()
	m, err := shard.NewManager(chain.ModeProofOfWork, func() *pow.Engine {
		e, err := pow.New(1, 1_000_000)
		require.NoError(t, err)
		return e
	}, nil, 1_700_000_000)
	require.NoError(t, err)
	return m
}

func TestEngineSealsBlocksAndAppliesTransfer(t *testing.T) {
	mgr := newPowShardManager(t)

	sk, pk, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	sender, err := crypto.AddressFromPublicKey(pk)
	require.NoError(t, err)
	receiver := "GILreceiveraddress00000000000000000000"
	targetShard := shard.ShardOf(receiver)

	// Regenerate the sender until its address lands on the receiver's
	// shard, so the transfer stays on one shard.
	for i := 0; i < 1000 && shard.ShardOf(sender) != targetShard; i++ {
		sk, pk, err = crypto.GenerateKeypair()
		require.NoError(t, err)
		sender, err = crypto.AddressFromPublicKey(pk)
		require.NoError(t, err)
	}

	sourceShard := shard.ShardOf(sender)
	require.Equal(t, sourceShard, targetShard, "test expects sender/receiver to land on the same shard")

	s, err := mgr.Shard(sourceShard)
	require.NoError(t, err)
	s.Chain.RegisterPublicKey(sender, pk)
	require.NoError(t, s.Chain.CreditGenesis(sender, types.FromFloat64(1000)))

	engine := NewEngine(mgr, nil, "", 20*time.Millisecond, func() int64 { return time.Now().Unix() })
	engine.Start()
	defer engine.Stop()

	tx := newSignedTransfer(t, sk, pk, sender, receiver, types.FromFloat64(100), 1)
	require.NoError(t, engine.SubmitTransaction(tx))

	require.Eventually(t, func() bool {
		return s.Chain.Balance(receiver) == types.FromFloat64(100)
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, types.FromFloat64(900), s.Chain.Balance(sender))
}

func TestApplyStakeEffectsRegistersNewValidatorThenTopsUpStake(t *testing.T) {
	posCfg := pos.DefaultConfig()
	mgr, err := shard.NewManager(chain.ModeProofOfStake, nil, func() *pos.Engine {
		e, err := pos.New(posCfg, 1_700_000_000)
		require.NoError(t, err)
		return e
	}, 1_700_000_000)
	require.NoError(t, err)

	sk, pk, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	addr, err := crypto.AddressFromPublicKey(pk)
	require.NoError(t, err)

	sID := shard.ShardOf(addr)
	s, err := mgr.Shard(sID)
	require.NoError(t, err)

	block := &types.Block{
		Transactions: []*types.Transaction{
			{Kind: types.Stake, Sender: addr, Amount: posCfg.MinStake},
		},
	}
	applyStakeEffects(s, block)

	v, ok := s.Chain.PosEngine().Validator(addr)
	require.True(t, ok)
	require.Equal(t, posCfg.MinStake, v.Stake)

	block2 := &types.Block{
		Transactions: []*types.Transaction{
			{Kind: types.Stake, Sender: addr, Amount: types.FromFloat64(500)},
		},
	}
	applyStakeEffects(s, block2)

	v, ok = s.Chain.PosEngine().Validator(addr)
	require.True(t, ok)
	require.Equal(t, posCfg.MinStake+types.FromFloat64(500), v.Stake)

	block3 := &types.Block{
		Transactions: []*types.Transaction{
			{Kind: types.Unstake, Sender: addr, Amount: types.FromFloat64(200)},
		},
	}
	applyStakeEffects(s, block3)

	v, ok = s.Chain.PosEngine().Validator(addr)
	require.True(t, ok)
	require.Equal(t, posCfg.MinStake+types.FromFloat64(300), v.Stake)
}

func TestEngineWithoutNetworkMessageLoopExitsOnStop(t *testing.T) {
	mgr := newPowShardManager(t)
	engine := NewEngine(mgr, nil, "", time.Hour, nil)
	engine.Start()
	engine.Stop() // must not hang: messageLoop has no *network.Manager to select on
}

func TestHandleIncomingBlockRejectsBadLinkage(t *testing.T) {
	mgr := newPowShardManager(t)
	engine := NewEngine(mgr, nil, "", time.Hour, func() int64 { return 1_700_000_000 })

	s, err := mgr.Shard(0)
	require.NoError(t, err)
	badBlock := &types.Block{Index: 99, PreviousHash: "deadbeef"}
	engine.handleIncomingBlock(mustMarshalEnvelope(t, BlockEnvelope{ShardID: 0, Block: badBlock}))
	require.Equal(t, int64(0), s.Chain.CurrentHeight())
}

func mustMarshalEnvelope(t *testing.T, env BlockEnvelope) []byte {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}
