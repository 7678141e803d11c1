package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gillean.network/gillean/internal/crypto"
	"gillean.network/gillean/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "gillean.db"), filepath.Join(dir, "backups"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func genesisBlock() *types.Block {
	b := &types.Block{Index: 0, Timestamp: 1700000000, PreviousHash: types.ZeroHash, Difficulty: 1}
	b.MerkleRoot = b.ComputeMerkleRoot()
	b.Hash = b.ComputeHash()
	return b
}

func TestSaveLoadBlockRoundTrip(t *testing.T) {
	s := newTestStore(t)
	block := genesisBlock()
	require.NoError(t, s.SaveBlock(block))

	loaded, ok, err := s.LoadBlock(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, block.Hash, loaded.Hash)

	_, ok, err = s.LoadBlock(1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadAllBlocksIsAscendingByIndex(t *testing.T) {
	s := newTestStore(t)
	b0 := genesisBlock()
	b1 := &types.Block{Index: 1, Timestamp: 1700000001, PreviousHash: b0.Hash, Difficulty: 1}
	b1.MerkleRoot = b1.ComputeMerkleRoot()
	b1.Hash = b1.ComputeHash()

	require.NoError(t, s.SaveAllBlocks([]*types.Block{b1, b0}))

	blocks, err := s.LoadAllBlocks()
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	require.Equal(t, uint64(0), blocks[0].Index)
	require.Equal(t, uint64(1), blocks[1].Index)
}

func TestSaveLoadBalances(t *testing.T) {
	s := newTestStore(t)
	balances := map[string]types.Amount{
		"GILaddr1": types.FromFloat64(100),
		"GILaddr2": types.FromFloat64(42.5),
	}
	require.NoError(t, s.SaveBalances(balances))

	loaded, err := s.LoadBalances()
	require.NoError(t, err)
	require.Equal(t, balances, loaded)
}

func TestSaveLoadPendingTransactions(t *testing.T) {
	s := newTestStore(t)
	sk, pk, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	addr, err := crypto.AddressFromPublicKey(pk)
	require.NoError(t, err)

	tx := &types.Transaction{Kind: types.Transfer, Sender: addr, Receiver: "GILreceiveraddress00000000000000000000", Amount: types.FromFloat64(1), Timestamp: 1700000001, Nonce: 1}
	require.NoError(t, tx.Sign(sk, pk))

	require.NoError(t, s.SavePendingTransactions([]*types.Transaction{tx}))
	loaded, err := s.LoadPendingTransactions()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, tx.ID, loaded[0].ID)
}

func TestWalletRoundTripAndList(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveWallet("GILaddr1", []byte("ciphertext-1")))
	require.NoError(t, s.SaveWallet("GILaddr2", []byte("ciphertext-2")))

	data, ok, err := s.LoadWallet("GILaddr1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("ciphertext-1"), data)

	addrs, err := s.ListWallets()
	require.NoError(t, err)
	require.Equal(t, []string{"GILaddr1", "GILaddr2"}, addrs)
}

func TestIntegrityCheckOfCleanStoreIsValidAndRecorded(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveBlock(genesisBlock()))

	result, err := s.IntegrityCheck(1700000100)
	require.NoError(t, err)
	require.True(t, result.IsValid)
	require.Equal(t, uint64(1), result.BlockCount)
	require.NotEmpty(t, result.Checksum)

	last, ok, err := s.LastIntegrityCheck()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, result.Checksum, last.Checksum)
}

func TestCreateBackupAndRestore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveBlock(genesisBlock()))
	require.NoError(t, s.SaveBalances(map[string]types.Amount{"GILaddr1": types.FromFloat64(10)}))

	info, err := s.CreateBackup(BackupFull, 1700000200)
	require.NoError(t, err)
	require.NotEmpty(t, info.BackupID)
	require.Equal(t, uint64(1), info.BlockCount)

	backups, err := s.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 1)

	require.NoError(t, s.SaveBalances(map[string]types.Amount{"GILaddr1": types.FromFloat64(999)}))
	require.NoError(t, s.RestoreFromBackup(info.BackupID, 1700000300))

	balances, err := s.LoadBalances()
	require.NoError(t, err)
	require.Equal(t, types.FromFloat64(10), balances["GILaddr1"])
}

func TestCleanupOldBackupsKeepsMostRecent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveBlock(genesisBlock()))

	var ids []string
	for i := 0; i < 3; i++ {
		info, err := s.CreateBackup(BackupFull, int64(1700000000+i))
		require.NoError(t, err)
		ids = append(ids, info.BackupID)
	}

	removed, err := s.CleanupOldBackups(1)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	backups, err := s.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	require.Equal(t, ids[len(ids)-1], backups[0].BackupID)
}

func TestSaveLoadBlockchainVersionGate(t *testing.T) {
	s := newTestStore(t)
	snapshot := &ChainSnapshot{
		Blocks:   []*types.Block{genesisBlock()},
		Balances: map[string]types.Amount{"GILaddr1": types.FromFloat64(5)},
	}
	require.NoError(t, s.SaveBlockchain(snapshot, 1700000000))

	loaded, err := s.LoadBlockchain()
	require.NoError(t, err)
	require.Len(t, loaded.Blocks, 1)
	require.Equal(t, types.FromFloat64(5), loaded.Balances["GILaddr1"])

	meta, err := s.LoadMetadata()
	require.NoError(t, err)
	meta.Version = "0.9.0"
	require.NoError(t, s.SaveMetadata(meta))

	_, err = s.LoadBlockchain()
	require.Error(t, err)
}

func TestOpenRejectsFormatVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gillean.db")
	s, err := Open(path, "")
	require.NoError(t, err)
	meta, err := s.LoadMetadata()
	require.NoError(t, err)
	meta.Version = "0.0.1"
	require.NoError(t, s.SaveMetadata(meta))
	require.NoError(t, s.Close())

	_, err = Open(path, "")
	require.Error(t, err)
}

func TestStorageHealthReportsBackupStatus(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveBlock(genesisBlock()))

	health, err := s.GetStorageHealth(1700000000)
	require.NoError(t, err)
	require.Equal(t, BackupStatusFailed, health.BackupStatus)

	_, err = s.CreateBackup(BackupFull, 1700000000)
	require.NoError(t, err)

	health, err = s.GetStorageHealth(1700000000)
	require.NoError(t, err)
	require.Equal(t, BackupStatusUpToDate, health.BackupStatus)
}
