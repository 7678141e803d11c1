package chain

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"gillean.network/gillean/internal/types"
)

// stateLeaf is one account's balance entry in the state-commitment
// tree.
type stateLeaf struct {
	address string
	balance types.Amount
}

func stateLeafCanonicalizer(item any) []byte {
	leaf := item.(stateLeaf)
	var buf bytes.Buffer
	buf.WriteString(leaf.address)
	_ = binary.Write(&buf, binary.BigEndian, int64(leaf.balance))
	return buf.Bytes()
}

func hexEncode(b []byte) string { return hex.EncodeToString(b) }

// emptyStateRootHex is the state root of a chain with no accounts yet,
// matching Block.ComputeMerkleRoot's empty-tree sentinel.
var emptyStateRootHex = hexEncode(sha256.New().Sum(nil))
