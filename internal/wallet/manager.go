package wallet

import (
	"fmt"

	"gillean.network/gillean/internal/crypto"
	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/storage"
)

// Manager persists and retrieves keystores through a storage.Store,
// the wallet-at-rest counterpart of internal/chain/internal/pos's
// in-memory state.
type Manager struct {
	store *storage.Store
}

// NewManager wraps store for wallet create/unlock/list operations.
func NewManager(store *storage.Store) *Manager {
	return &Manager{store: store}
}

// Create generates a new wallet, persists its encrypted keystore, and
// returns the unlocked Wallet.
func (m *Manager) Create(password string, kdf crypto.KDFKind) (*Wallet, error) {
	w, ks, err := Generate(password, kdf)
	if err != nil {
		return nil, err
	}
	data, err := ks.Marshal()
	if err != nil {
		return nil, err
	}
	if err := m.store.SaveWallet(w.Address, data); err != nil {
		return nil, err
	}
	return w, nil
}

// Unlock loads address's keystore and decrypts it with password.
func (m *Manager) Unlock(address, password string) (*Wallet, error) {
	data, ok, err := m.store.LoadWallet(address)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no wallet for address %s", nodeerrors.ErrInvalidInput, address)
	}
	ks, err := UnmarshalKeystore(data)
	if err != nil {
		return nil, err
	}
	return Unlock(ks, password)
}

// List returns every address with a persisted keystore.
func (m *Manager) List() ([]string, error) {
	return m.store.ListWallets()
}
