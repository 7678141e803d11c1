package chain

import (
	"crypto/ed25519"
	"fmt"

	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/types"
)

// RegisterPublicKey associates an address with the Ed25519 public key
// that must verify its future transaction signatures. Wallets call this
// once, at account creation (§4.1/§4.6).
func (bc *Blockchain) RegisterPublicKey(address string, pubKey ed25519.PublicKey) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.pubKeys[address] = pubKey
}

// AddTransaction validates tx per §4.5 ("Validate signature, nonce
// monotonicity, kind-specific rules... then append to mempool") and
// queues it. Stake/Unstake kind-specific rules are the caller's
// responsibility to route to internal/pos; AddTransaction only checks
// the rules it can check from chain state alone (signature, nonce,
// and Transfer's balance floor).
func (bc *Blockchain) AddTransaction(tx *types.Transaction) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if err := tx.Validate(); err != nil {
		return err
	}

	pubKey, ok := bc.pubKeys[tx.Sender]
	if !ok {
		return fmt.Errorf("%w: no registered public key for sender %s", nodeerrors.ErrInvalidSignature, tx.Sender)
	}
	if err := tx.VerifySignature(pubKey); err != nil {
		return err
	}

	if tx.Nonce <= bc.nonces[tx.Sender] {
		return &nodeerrors.StaleNonceError{Address: tx.Sender, Last: bc.nonces[tx.Sender], Got: tx.Nonce}
	}

	if tx.Kind == types.Transfer {
		if bc.balances[tx.Sender] < tx.Amount {
			return &nodeerrors.InsufficientBalanceError{Address: tx.Sender, Have: int64(bc.balances[tx.Sender]), Need: int64(tx.Amount)}
		}
	}

	return bc.mempool.Add(tx)
}

// CanDebit reports whether address's current balance and nonce allow a
// debit of amount at the given nonce, without mutating state. The
// cross-shard coordinator (internal/shard) uses this as the prepare
// vote for a transaction's source-shard leg.
func (bc *Blockchain) CanDebit(address string, amount types.Amount, nonce uint64) bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.balances[address] >= amount && nonce > bc.nonces[address]
}

