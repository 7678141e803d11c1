package chain

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
	"gillean.network/gillean/internal/crypto"
	"gillean.network/gillean/internal/mempool"
	"gillean.network/gillean/internal/pow"
	"gillean.network/gillean/internal/types"
	"gillean.network/gillean/internal/vm"
	"gillean.network/gillean/internal/zkproof"
)

func newPowChain(t *testing.T) *Blockchain {
	t.Helper()
	engine, err := pow.New(1, 1_000_000)
	require.NoError(t, err)
	bc, err := New(ModeProofOfWork, engine, nil, mempool.New(), 1700000000)
	require.NoError(t, err)
	return bc
}

func TestGenesisBlockInvariants(t *testing.T) {
	bc := newPowChain(t)
	tip := bc.Tip()
	require.Equal(t, uint64(0), tip.Index)
	require.Equal(t, types.ZeroHash, tip.PreviousHash)
	require.Empty(t, tip.Transactions)
	require.Equal(t, int64(0), bc.CurrentHeight())
}

func TestAddTransactionAndSealAppliesBalances(t *testing.T) {
	bc := newPowChain(t)

	sk, pk, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	sender, err := crypto.AddressFromPublicKey(pk)
	require.NoError(t, err)
	bc.RegisterPublicKey(sender, pk)
	require.NoError(t, bc.CreditGenesis(sender, types.FromFloat64(1000)))

	receiver := "GILreceiveraddress00000000000000000000"
	tx := &types.Transaction{
		Kind:      types.Transfer,
		Sender:    sender,
		Receiver:  receiver,
		Amount:    types.FromFloat64(100),
		Timestamp: 1700000001,
		Nonce:     1,
	}
	require.NoError(t, tx.Sign(sk, pk))
	require.NoError(t, bc.AddTransaction(tx))

	block, err := bc.Seal(1700000002, "")
	require.NoError(t, err)
	require.Len(t, block.Transactions, 1)
	require.Equal(t, types.FromFloat64(900), bc.Balance(sender))
	require.Equal(t, types.FromFloat64(100), bc.Balance(receiver))
}

func TestAddTransactionRejectsInsufficientBalance(t *testing.T) {
	bc := newPowChain(t)
	sk, pk, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	sender, err := crypto.AddressFromPublicKey(pk)
	require.NoError(t, err)
	bc.RegisterPublicKey(sender, pk)

	tx := &types.Transaction{
		Kind:      types.Transfer,
		Sender:    sender,
		Receiver:  "GILreceiveraddress00000000000000000000",
		Amount:    types.FromFloat64(50),
		Timestamp: 1700000001,
		Nonce:     1,
	}
	require.NoError(t, tx.Sign(sk, pk))
	require.Error(t, bc.AddTransaction(tx))
}

func TestAddTransactionRejectsStaleNonce(t *testing.T) {
	bc := newPowChain(t)
	sk, pk, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	sender, err := crypto.AddressFromPublicKey(pk)
	require.NoError(t, err)
	bc.RegisterPublicKey(sender, pk)
	require.NoError(t, bc.CreditGenesis(sender, types.FromFloat64(1000)))

	tx1 := &types.Transaction{Kind: types.Transfer, Sender: sender, Receiver: "GILreceiveraddress00000000000000000000", Amount: types.FromFloat64(1), Timestamp: 1700000001, Nonce: 5}
	require.NoError(t, tx1.Sign(sk, pk))
	require.NoError(t, bc.AddTransaction(tx1))
	_, err = bc.Seal(1700000002, "")
	require.NoError(t, err)

	tx2 := &types.Transaction{Kind: types.Transfer, Sender: sender, Receiver: "GILreceiveraddress00000000000000000000", Amount: types.FromFloat64(1), Timestamp: 1700000003, Nonce: 5}
	require.NoError(t, tx2.Sign(sk, pk))
	require.Error(t, bc.AddTransaction(tx2))
}

func TestValidateChainDetectsTamperedBlock(t *testing.T) {
	bc := newPowChain(t)
	sk, pk, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	sender, err := crypto.AddressFromPublicKey(pk)
	require.NoError(t, err)
	bc.RegisterPublicKey(sender, pk)
	require.NoError(t, bc.CreditGenesis(sender, types.FromFloat64(1000)))

	tx := &types.Transaction{Kind: types.Transfer, Sender: sender, Receiver: "GILreceiveraddress00000000000000000000", Amount: types.FromFloat64(1), Timestamp: 1700000001, Nonce: 1}
	require.NoError(t, tx.Sign(sk, pk))
	require.NoError(t, bc.AddTransaction(tx))
	_, err = bc.Seal(1700000002, "")
	require.NoError(t, err)

	pubKeys := map[string]ed25519.PublicKey{sender: pk}
	require.NoError(t, ValidateChain(bc.blocks, ModeProofOfWork, true, pubKeys))

	tampered := make([]*types.Block, len(bc.blocks))
	copy(tampered, bc.blocks)
	badBlock := *tampered[1]
	badBlock.MerkleRoot = "tampered"
	tampered[1] = &badBlock
	require.Error(t, ValidateChain(tampered, ModeProofOfWork, true, pubKeys))
}

func TestContractCallChargesExecutorFeeNotRawAmount(t *testing.T) {
	bc := newPowChain(t)
	sk, pk, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	sender, err := crypto.AddressFromPublicKey(pk)
	require.NoError(t, err)
	bc.RegisterPublicKey(sender, pk)
	require.NoError(t, bc.CreditGenesis(sender, types.FromFloat64(1000)))

	tx := &types.Transaction{
		Kind:      types.ContractCall,
		Sender:    sender,
		Receiver:  "GILcontractaddress000000000000000000000",
		Amount:    types.FromFloat64(100),
		Message:   []byte("call deposit()"),
		Timestamp: 1700000001,
		Nonce:     1,
	}
	require.NoError(t, tx.Sign(sk, pk))
	require.NoError(t, bc.AddTransaction(tx))

	_, err = bc.Seal(1700000002, "")
	require.NoError(t, err)
	require.Equal(t, types.FromFloat64(1000)-vm.FlatCallFee, bc.Balance(sender))
}

func TestFailedContractCallIsScopedNotBlockWideRollback(t *testing.T) {
	bc := newPowChain(t)

	contractSK, contractPK, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	contractCaller, err := crypto.AddressFromPublicKey(contractPK)
	require.NoError(t, err)
	bc.RegisterPublicKey(contractCaller, contractPK)
	// Underfunded: less than vm.FlatCallFee, so the call fails on the
	// fee check rather than paying it.
	require.NoError(t, bc.CreditGenesis(contractCaller, vm.FlatCallFee/2))

	failingCall := &types.Transaction{
		Kind:      types.ContractCall,
		Sender:    contractCaller,
		Receiver:  "GILcontractaddress000000000000000000000",
		Message:   []byte("call deposit()"),
		Timestamp: 1700000001,
		Nonce:     1,
	}
	require.NoError(t, failingCall.Sign(contractSK, contractPK))
	require.NoError(t, bc.AddTransaction(failingCall))

	transferSK, transferPK, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	transferSender, err := crypto.AddressFromPublicKey(transferPK)
	require.NoError(t, err)
	bc.RegisterPublicKey(transferSender, transferPK)
	require.NoError(t, bc.CreditGenesis(transferSender, types.FromFloat64(100)))

	transfer := &types.Transaction{
		Kind:      types.Transfer,
		Sender:    transferSender,
		Receiver:  "GILreceiveraddress00000000000000000000",
		Amount:    types.FromFloat64(40),
		Timestamp: 1700000001,
		Nonce:     1,
	}
	require.NoError(t, transfer.Sign(transferSK, transferPK))
	require.NoError(t, bc.AddTransaction(transfer))

	block, err := bc.Seal(1700000002, "")
	require.NoError(t, err, "a failed contract call must not abort the whole block")
	require.Len(t, block.Transactions, 2)

	require.Len(t, block.Receipts, 1)
	require.Equal(t, failingCall.ID, block.Receipts[0].TxID)
	require.False(t, block.Receipts[0].Success)
	require.NotEmpty(t, block.Receipts[0].Error)

	// The failed call's sender keeps its balance (no fee charged) but
	// its nonce is still consumed.
	require.Equal(t, vm.FlatCallFee/2, bc.Balance(contractCaller))
	// The sibling Transfer in the same block still applied.
	require.Equal(t, types.FromFloat64(60), bc.Balance(transferSender))
	require.Equal(t, types.FromFloat64(40), bc.Balance("GILreceiveraddress00000000000000000000"))
}

func TestPrivateTransferRejectsProofNotMatchingCommitment(t *testing.T) {
	bc := newPowChain(t)
	sk, pk, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	sender, err := crypto.AddressFromPublicKey(pk)
	require.NoError(t, err)
	bc.RegisterPublicKey(sender, pk)
	require.NoError(t, bc.CreditGenesis(sender, types.FromFloat64(1000)))

	receiver := "GILreceiveraddress00000000000000000000"
	tx := &types.Transaction{
		Kind:      types.PrivateTransfer,
		Sender:    sender,
		Receiver:  receiver,
		Amount:    types.FromFloat64(50),
		Message:   append([]byte{1, 2, 3, 4}, make([]byte, 28)...), // wrong commitment
		Timestamp: 1700000001,
		Nonce:     1,
	}
	require.NoError(t, tx.Sign(sk, pk))
	require.NoError(t, bc.AddTransaction(tx))

	_, err = bc.Seal(1700000002, "")
	require.Error(t, err)
}

func TestPrivateTransferAppliesWithMatchingCommitment(t *testing.T) {
	bc := newPowChain(t)
	sk, pk, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	sender, err := crypto.AddressFromPublicKey(pk)
	require.NoError(t, err)
	bc.RegisterPublicKey(sender, pk)
	require.NoError(t, bc.CreditGenesis(sender, types.FromFloat64(1000)))

	receiver := "GILreceiveraddress00000000000000000000"
	amount := types.FromFloat64(50)
	commitment := zkproof.Commit(sender, receiver, int64(amount), 1)
	proofData := append(append([]byte{}, commitment[:]...), []byte("opaque-proof-bytes")...)

	tx := &types.Transaction{
		Kind:      types.PrivateTransfer,
		Sender:    sender,
		Receiver:  receiver,
		Amount:    amount,
		Message:   proofData,
		Timestamp: 1700000001,
		Nonce:     1,
	}
	require.NoError(t, tx.Sign(sk, pk))
	require.NoError(t, bc.AddTransaction(tx))

	_, err = bc.Seal(1700000002, "")
	require.NoError(t, err)
	require.Equal(t, types.FromFloat64(950), bc.Balance(sender))
	require.Equal(t, types.FromFloat64(50), bc.Balance(receiver))
}

func TestPreferCandidateLongestChainForPoW(t *testing.T) {
	short := make([]*types.Block, 2)
	long := make([]*types.Block, 3)
	require.True(t, PreferCandidate(ModeProofOfWork, short, long, -1, -1))
	require.False(t, PreferCandidate(ModeProofOfWork, long, short, -1, -1))
}

func TestPreferCandidatePrefersHigherFinalizedHeightForPoS(t *testing.T) {
	a := make([]*types.Block, 5)
	b := make([]*types.Block, 3)
	require.True(t, PreferCandidate(ModeProofOfStake, a, b, 2, 4))
	require.False(t, PreferCandidate(ModeProofOfStake, a, b, 4, 2))
}
