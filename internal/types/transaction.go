package types

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"gillean.network/gillean/internal/crypto"
	"gillean.network/gillean/internal/nodeerrors"
)

// TxKind enumerates the transaction kinds of §3.
type TxKind uint8

const (
	Transfer TxKind = iota
	Stake
	Unstake
	ContractCall
	ContractDeploy
	PrivateTransfer
)

func (k TxKind) String() string {
	switch k {
	case Transfer:
		return "Transfer"
	case Stake:
		return "Stake"
	case Unstake:
		return "Unstake"
	case ContractCall:
		return "ContractCall"
	case ContractDeploy:
		return "ContractDeploy"
	case PrivateTransfer:
		return "PrivateTransfer"
	default:
		return "Unknown"
	}
}

// MaxMessageBytes is the §3 limit on Transaction.Message size.
const MaxMessageBytes = 1024

// Transaction is the fundamental unit of value transfer and state
// change (§3). Canonical serialization (CanonicalBody) uses
// fixed-width big-endian numeric encoding, per §4.6 — this is the
// Go-native generalization of the teacher's JSON-canonicalization
// pattern in internal/core/transaction.go, swapped to the spec's
// binary encoding so independent implementations byte-match (§6).
type Transaction struct {
	ID        [32]byte
	Kind      TxKind
	Sender    string
	Receiver  string
	Amount    Amount
	Message   []byte
	Timestamp int64
	Nonce     uint64
	Signature []byte // 64-byte Ed25519 signature over CanonicalBody()||SenderPubKey
}

// CanonicalBody serializes the transaction body (everything but ID and
// Signature) in the fixed field order of §3 with big-endian fixed-width
// numeric encoding, so two implementations produce byte-identical
// output for the same logical transaction.
func (tx *Transaction) CanonicalBody() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(tx.Kind))
	writeLenPrefixed(&buf, []byte(tx.Sender))
	writeLenPrefixed(&buf, []byte(tx.Receiver))
	_ = binary.Write(&buf, binary.BigEndian, int64(tx.Amount))
	writeLenPrefixed(&buf, tx.Message)
	_ = binary.Write(&buf, binary.BigEndian, tx.Timestamp)
	_ = binary.Write(&buf, binary.BigEndian, tx.Nonce)
	return buf.Bytes()
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

// ComputeID returns the deterministic id for this transaction's body:
// the raw 32-byte sha256(CanonicalBody()); IDHex renders it as hex (§3).
func (tx *Transaction) ComputeID() [32]byte {
	return sha256.Sum256(tx.CanonicalBody())
}

// Sign sets tx.ID and tx.Signature, signing CanonicalBody()||senderPubKey
// with sk, per §4.6.
func (tx *Transaction) Sign(sk ed25519.PrivateKey, senderPubKey ed25519.PublicKey) error {
	tx.ID = tx.ComputeID()
	signed := append(append([]byte{}, tx.CanonicalBody()...), senderPubKey...)
	sig, err := crypto.Sign(sk, signed)
	if err != nil {
		return err
	}
	tx.Signature = sig
	return nil
}

// VerifySignature verifies tx.Signature against senderPubKey, and that
// AddressFromPublicKey(senderPubKey) matches tx.Sender.
func (tx *Transaction) VerifySignature(senderPubKey ed25519.PublicKey) error {
	if len(tx.Signature) == 0 {
		return fmt.Errorf("%w: missing signature", nodeerrors.ErrInvalidSignature)
	}
	wantAddr, err := crypto.AddressFromPublicKey(senderPubKey)
	if err != nil {
		return fmt.Errorf("%w: %v", nodeerrors.ErrInvalidSignature, err)
	}
	if wantAddr != tx.Sender {
		return fmt.Errorf("%w: public key does not match claimed sender %s", nodeerrors.ErrInvalidSignature, tx.Sender)
	}
	signed := append(append([]byte{}, tx.CanonicalBody()...), senderPubKey...)
	if !crypto.Verify(senderPubKey, signed, tx.Signature) {
		return fmt.Errorf("%w: signature does not verify", nodeerrors.ErrInvalidSignature)
	}
	return nil
}

// IDHex returns the hex-encoded transaction id.
func (tx *Transaction) IDHex() string { return hex.EncodeToString(tx.ID[:]) }

// Validate performs stateless structural validation of a transaction
// per §4.6: malformed address, negative amount, missing signature,
// message over size limit. Nonce monotonicity and balance sufficiency
// are state-dependent and checked by the chain package at apply time.
func (tx *Transaction) Validate() error {
	if tx.Sender == "" {
		return fmt.Errorf("%w: malformed sender address", nodeerrors.ErrInvalidTransaction)
	}
	if tx.Kind != ContractDeploy && tx.Receiver == "" {
		return fmt.Errorf("%w: malformed receiver address", nodeerrors.ErrInvalidTransaction)
	}
	if tx.Amount < 0 {
		return fmt.Errorf("%w: amount cannot be negative", nodeerrors.ErrInvalidTransaction)
	}
	if len(tx.Message) > MaxMessageBytes {
		return fmt.Errorf("%w: message exceeds %d bytes", nodeerrors.ErrInvalidTransaction, MaxMessageBytes)
	}
	if len(tx.Signature) != crypto.SignatureSize {
		return fmt.Errorf("%w: missing or malformed signature", nodeerrors.ErrInvalidSignature)
	}
	if tx.ComputeID() != tx.ID {
		return fmt.Errorf("%w: transaction id does not match canonical body hash", nodeerrors.ErrInvalidTransaction)
	}
	return nil
}
