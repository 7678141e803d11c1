package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"gillean.network/gillean/internal/merkle"
	"gillean.network/gillean/internal/nodeerrors"
)

// ZeroHash is the all-zeros previous-hash genesis uses (§3).
var ZeroHash = strings.Repeat("0", 64)

// FinalitySignature is one validator's attestation over a block hash
// (§3, §4.3).
type FinalitySignature struct {
	ValidatorAddress string
	Signature        []byte
}

// ContractReceipt records the post-execution outcome of one
// ContractCall/ContractDeploy transaction within a block. A failed
// contract call is scoped to that one transaction rather than the
// whole block (§7: "ContractValidationFailed / ContractExecutionError
// — scoped to the contract call; the block may still apply with the
// failed call recorded"), so applyLocked records the outcome here
// instead of rolling the block back.
type ContractReceipt struct {
	TxID    [32]byte
	Success bool
	GasUsed uint64
	Error   string
}

// Block is the unit of consensus (§3). Fields and hash input ordering
// are fixed by §6: the canonical hash input concatenates
// index:timestamp:previous_hash:merkle_root:nonce:difficulty[:proposer]
// as UTF-8 decimal/hex strings joined by ":", then SHA-256 + hex.
// Receipts is execution metadata, not part of the hashed input: two
// honest nodes computing the same deterministic contract outcomes
// agree on it without it needing to be consensus-critical.
type Block struct {
	Index              uint64
	Timestamp          int64
	PreviousHash       string
	Transactions       []*Transaction
	MerkleRoot         string
	Nonce              uint64
	Difficulty         uint32 // PoW only
	Hash               string
	Proposer           string // PoS only
	FinalitySignatures []FinalitySignature
	Receipts           []ContractReceipt
}

// ComputeMerkleRoot builds the Merkle tree over Transactions in order
// and returns its hex root, or the empty-tree sentinel for no txs.
func (b *Block) ComputeMerkleRoot() string {
	if len(b.Transactions) == 0 {
		sum := sha256.Sum256(nil)
		return hex.EncodeToString(sum[:])
	}
	items := make([]any, len(b.Transactions))
	for i, tx := range b.Transactions {
		items[i] = tx
	}
	tree := merkle.New(items, txCanonicalizer)
	root, _ := tree.Root()
	return hex.EncodeToString(root)
}

func txCanonicalizer(item any) []byte {
	tx := item.(*Transaction)
	return tx.CanonicalBody()
}

// HashInput builds the canonical byte string hashed to produce
// Block.Hash, per §6.
func (b *Block) HashInput() []byte {
	var buf bytes.Buffer
	buf.WriteString(strconv.FormatUint(b.Index, 10))
	buf.WriteByte(':')
	buf.WriteString(strconv.FormatInt(b.Timestamp, 10))
	buf.WriteByte(':')
	buf.WriteString(b.PreviousHash)
	buf.WriteByte(':')
	buf.WriteString(b.MerkleRoot)
	buf.WriteByte(':')
	buf.WriteString(strconv.FormatUint(b.Nonce, 10))
	buf.WriteByte(':')
	buf.WriteString(strconv.FormatUint(uint64(b.Difficulty), 10))
	if b.Proposer != "" {
		buf.WriteByte(':')
		buf.WriteString(b.Proposer)
	}
	return buf.Bytes()
}

// ComputeHash hashes HashInput() with SHA-256 and returns the hex digest.
func (b *Block) ComputeHash() string {
	sum := sha256.Sum256(b.HashInput())
	return hex.EncodeToString(sum[:])
}

// leadingHexZeros counts leading '0' hex characters in s.
func leadingHexZeros(s string) int {
	n := 0
	for _, c := range s {
		if c != '0' {
			break
		}
		n++
	}
	return n
}

// MeetsDifficulty reports whether hash has at least `difficulty`
// leading hex zeros (§4.4).
func MeetsDifficulty(hash string, difficulty uint32) bool {
	return leadingHexZeros(hash) >= int(difficulty)
}

// ValidateStructure checks the invariants of §3 that are computable
// from the block alone: recomputed hash, recomputed Merkle root, and
// (for PoW) difficulty. Chain-linkage and proposer-eligibility checks
// require chain state and live in the chain package.
func (b *Block) ValidateStructure(proofOfWork bool) error {
	wantRoot := b.ComputeMerkleRoot()
	if wantRoot != b.MerkleRoot {
		return fmt.Errorf("%w: merkle root mismatch: want %s, got %s", nodeerrors.ErrInvalidHash, wantRoot, b.MerkleRoot)
	}
	wantHash := b.ComputeHash()
	if wantHash != b.Hash {
		return fmt.Errorf("%w: block hash mismatch: want %s, got %s", nodeerrors.ErrInvalidHash, wantHash, b.Hash)
	}
	if proofOfWork && !MeetsDifficulty(b.Hash, b.Difficulty) {
		return fmt.Errorf("%w: hash does not meet difficulty %d", nodeerrors.ErrInvalidProofOfWork, b.Difficulty)
	}
	return nil
}

// SerializeIndex encodes a block index as big-endian for use as a
// bbolt key, preserving ascending numeric order under byte comparison
// (§3 storage layout).
func SerializeIndex(index uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], index)
	return b[:]
}
