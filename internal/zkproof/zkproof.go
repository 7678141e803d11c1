// Package zkproof defines the proof-verification boundary for
// PrivateTransfer transactions (§6: "the core treats proofs as opaque
// byte blobs with a verify/reject interface"). ZK circuit construction
// is a Non-goal; this package never constructs or interprets a real
// proof, it only defines the Verifier contract internal/chain calls
// and a commitment-matching default implementation.
//
// Grounded on original_source/src/zkp.rs's ZKProof/PrivateTransaction
// (proof_data, public_inputs, verification_key, amount/sender/receiver
// commitments) for the shape, generalized into one recorded commitment
// hash per §6 rather than the original's three separate commitments,
// since the core only needs to verify that a proof corresponds to a
// previously published commitment, not reconstruct the hidden values.
package zkproof

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"gillean.network/gillean/internal/nodeerrors"
)

// Proof is an opaque proof blob plus the commitment it claims to
// attest to. The core never inspects proof_data beyond length and
// commitment matching.
type Proof struct {
	CommitmentHash [32]byte
	ProofData      []byte
}

// Verifier checks a Proof without needing to understand its internal
// structure. A real ZK backend (e.g. RISC0, as the original names)
// implements this without internal/chain changing at all.
type Verifier interface {
	Verify(p Proof) error
}

// CommitmentVerifier is the default Verifier: it accepts a proof only
// if it is non-empty and its first 32 bytes equal the recorded
// commitment hash, per §6's "opaque blob" boundary — this is
// deliberately not cryptographic proof verification, only the
// structural check the core can perform without ZK circuit logic.
type CommitmentVerifier struct{}

// NewCommitmentVerifier constructs the default Verifier.
func NewCommitmentVerifier() *CommitmentVerifier { return &CommitmentVerifier{} }

// Verify implements Verifier.
func (CommitmentVerifier) Verify(p Proof) error {
	if len(p.ProofData) == 0 {
		return fmt.Errorf("%w: empty proof data", nodeerrors.ErrInvalidInput)
	}
	if len(p.ProofData) < 32 {
		return fmt.Errorf("%w: proof data shorter than commitment hash", nodeerrors.ErrInvalidInput)
	}
	var embedded [32]byte
	copy(embedded[:], p.ProofData[:32])
	if embedded != p.CommitmentHash {
		return fmt.Errorf("%w: proof does not match recorded commitment", nodeerrors.ErrInvalidInput)
	}
	return nil
}

// Commit derives the commitment hash for a private-transfer's hidden
// amount/sender/receiver triple, for callers constructing a Proof to
// submit alongside a PrivateTransfer transaction.
func Commit(senderAddr, receiverAddr string, amountMinorUnits int64, nonce uint64) [32]byte {
	h := sha256.New()
	h.Write([]byte(senderAddr))
	h.Write([]byte(receiverAddr))
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(amountMinorUnits))
	binary.BigEndian.PutUint64(buf[8:], nonce)
	h.Write(buf[:])
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
