// Package vm defines the contract-call execution boundary (§6: "proofs
// and contract execution as opaque interfaces"). WASM execution
// internals are a Non-goal; this package provides the Executor
// interface a real WASM host would implement, plus a deterministic
// no-op Executor so ContractCall/ContractDeploy transactions still
// flow end-to-end through internal/chain.
//
// Grounded on the teacher's internal/vm package doc comment (WASM
// runtime, host functions, gas accounting) for the interface's
// responsibilities, and original_source/src/smart_contract.rs's
// ContractVM for the gas-accounting shape the real executor this
// interface stands in for would have.
package vm

import (
	"fmt"

	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/types"
)

// FlatCallFee is the gas-stand-in fee the no-op Executor charges for
// every ContractCall/ContractDeploy, since there is no real gas meter
// behind it.
const FlatCallFee = types.Amount(1000) // 0.00001000 coin at 1e-8 scale

// Result is what an Executor returns for one contract transaction.
type Result struct {
	Success bool
	Fee     types.Amount
	GasUsed uint64
	Output  []byte
}

// Executor runs a ContractCall or ContractDeploy transaction. A real
// WASM host implements this against the VM internals the spec
// explicitly excludes from this repo; internal/chain only ever talks
// to this interface, never to a concrete runtime.
type Executor interface {
	Execute(tx *types.Transaction) (*Result, error)
}

// NoopExecutor deterministically "executes" every ContractCall/
// ContractDeploy by charging FlatCallFee and recording the call,
// without interpreting tx.Message as code at all.
type NoopExecutor struct{}

// NewNoopExecutor constructs the default Executor used until a real
// WASM host is wired in.
func NewNoopExecutor() *NoopExecutor { return &NoopExecutor{} }

// Execute validates that tx is a contract-kind transaction and returns
// a flat-fee result.
func (NoopExecutor) Execute(tx *types.Transaction) (*Result, error) {
	switch tx.Kind {
	case types.ContractCall, types.ContractDeploy:
	default:
		return nil, fmt.Errorf("%w: executor invoked for non-contract transaction kind %s", nodeerrors.ErrContractValidationFailed, tx.Kind)
	}
	return &Result{Success: true, Fee: FlatCallFee, GasUsed: uint64(len(tx.Message)) + 1, Output: nil}, nil
}
