package zkproof

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyAcceptsProofMatchingCommitment(t *testing.T) {
	commitment := Commit("GILsender0000000000000000000000000000", "GILreceiver00000000000000000000000000", 100, 1)
	proof := Proof{CommitmentHash: commitment, ProofData: append(append([]byte(nil), commitment[:]...), []byte("proof-blob")...)}

	v := NewCommitmentVerifier()
	require.NoError(t, v.Verify(proof))
}

func TestVerifyRejectsMismatchedCommitment(t *testing.T) {
	commitment := Commit("GILsender0000000000000000000000000000", "GILreceiver00000000000000000000000000", 100, 1)
	wrong := Commit("GILsender0000000000000000000000000000", "GILreceiver00000000000000000000000000", 999, 1)
	proof := Proof{CommitmentHash: commitment, ProofData: append(append([]byte(nil), wrong[:]...), []byte("proof-blob")...)}

	v := NewCommitmentVerifier()
	require.Error(t, v.Verify(proof))
}

func TestVerifyRejectsEmptyProof(t *testing.T) {
	v := NewCommitmentVerifier()
	require.Error(t, v.Verify(Proof{}))
}
