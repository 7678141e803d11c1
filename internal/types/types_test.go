package types

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gillean.network/gillean/internal/crypto"
)

func signedTransfer(t *testing.T, sender string, sk []byte, pk []byte, receiver string, amount Amount, nonce uint64) *Transaction {
	t.Helper()
	tx := &Transaction{
		Kind:      Transfer,
		Sender:    sender,
		Receiver:  receiver,
		Amount:    amount,
		Timestamp: 1700000000,
		Nonce:     nonce,
	}
	require.NoError(t, tx.Sign(sk, pk))
	return tx
}

func TestTransactionSignVerifyRoundTrip(t *testing.T) {
	sk, pk, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	addr, err := crypto.AddressFromPublicKey(pk)
	require.NoError(t, err)

	tx := signedTransfer(t, addr, sk, pk, "GILreceiveraddress00000000000000000000", FromFloat64(100), 1)
	require.NoError(t, tx.Validate())
	require.NoError(t, tx.VerifySignature(pk))
}

func TestTransactionIDDeterministic(t *testing.T) {
	sk, pk, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	addr, _ := crypto.AddressFromPublicKey(pk)

	tx1 := signedTransfer(t, addr, sk, pk, "GILreceiveraddress00000000000000000000", FromFloat64(50), 1)
	tx2 := &Transaction{
		Kind:      tx1.Kind,
		Sender:    tx1.Sender,
		Receiver:  tx1.Receiver,
		Amount:    tx1.Amount,
		Timestamp: tx1.Timestamp,
		Nonce:     tx1.Nonce,
	}
	require.Equal(t, tx1.ComputeID(), tx2.ComputeID())
}

func TestTransactionRejectsTamperedSignature(t *testing.T) {
	sk, pk, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	addr, _ := crypto.AddressFromPublicKey(pk)

	tx := signedTransfer(t, addr, sk, pk, "GILreceiveraddress00000000000000000000", FromFloat64(10), 1)
	tx.Signature[0] ^= 0xFF
	require.Error(t, tx.VerifySignature(pk))
}

func TestBlockHashAndMerkleRootRoundTrip(t *testing.T) {
	sk, pk, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	addr, _ := crypto.AddressFromPublicKey(pk)

	tx := signedTransfer(t, addr, sk, pk, "GILreceiveraddress00000000000000000000", FromFloat64(1), 1)

	block := &Block{
		Index:        1,
		Timestamp:    1700000000,
		PreviousHash: ZeroHash,
		Transactions: []*Transaction{tx},
	}
	block.MerkleRoot = block.ComputeMerkleRoot()
	block.Hash = block.ComputeHash()

	require.NoError(t, block.ValidateStructure(false))

	block.MerkleRoot = "tampered"
	require.Error(t, block.ValidateStructure(false))
}

func TestGenesisBlockBoundary(t *testing.T) {
	block := &Block{Index: 0, Timestamp: 0, PreviousHash: ZeroHash}
	block.MerkleRoot = block.ComputeMerkleRoot()
	block.Hash = block.ComputeHash()
	require.NoError(t, block.ValidateStructure(false))
	require.Equal(t, ZeroHash, block.PreviousHash)
	require.Empty(t, block.Transactions)
}

func TestMeetsDifficulty(t *testing.T) {
	require.True(t, MeetsDifficulty("000abc", 3))
	require.False(t, MeetsDifficulty("00abc", 3))
}
