package mempool

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gillean.network/gillean/internal/crypto"
	"gillean.network/gillean/internal/types"
)

func newTx(t *testing.T, nonce uint64) *types.Transaction {
	t.Helper()
	sk, pk, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	addr, err := crypto.AddressFromPublicKey(pk)
	require.NoError(t, err)
	tx := &types.Transaction{
		Kind:      types.Transfer,
		Sender:    addr,
		Receiver:  "GILreceiveraddress00000000000000000000",
		Amount:    types.FromFloat64(1),
		Timestamp: 1700000000,
		Nonce:     nonce,
	}
	require.NoError(t, tx.Sign(sk, pk))
	return tx
}

func TestPoolPreservesFIFOOrder(t *testing.T) {
	p := New()
	tx1 := newTx(t, 1)
	tx2 := newTx(t, 2)
	tx3 := newTx(t, 3)

	require.NoError(t, p.Add(tx1))
	require.NoError(t, p.Add(tx2))
	require.NoError(t, p.Add(tx3))

	got := p.Take(2)
	require.Equal(t, tx1.ID, got[0].ID)
	require.Equal(t, tx2.ID, got[1].ID)
	require.Equal(t, 3, p.Count())
}

func TestPoolRejectsDuplicate(t *testing.T) {
	p := New()
	tx := newTx(t, 1)
	require.NoError(t, p.Add(tx))
	require.Error(t, p.Add(tx))
}

func TestPoolRemove(t *testing.T) {
	p := New()
	tx := newTx(t, 1)
	require.NoError(t, p.Add(tx))
	p.Remove(tx.ID)
	require.Equal(t, 0, p.Count())
}
