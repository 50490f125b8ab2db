// Package chain defines the blockchain collaborator boundary. The core
// consumes wallet operations as opaque fallible actions returning a
// transaction reference or a typed error; gas, nonces and slippage are not
// modeled here.
package chain

import (
	"context"
	"fmt"
)

// TxRef references a submitted transaction.
type TxRef string

// ContractRef references a deployed contract.
type ContractRef string

// ErrorCode categorizes chain action failures.
type ErrorCode string

const (
	// ErrInsufficientFunds indicates the sender balance cannot cover the amount.
	ErrInsufficientFunds ErrorCode = "insufficient_funds"
	// ErrNetwork indicates an RPC or connectivity failure.
	ErrNetwork ErrorCode = "network_error"
	// ErrInvalidAddress indicates a malformed destination address.
	ErrInvalidAddress ErrorCode = "invalid_address"
)

// ActionError is the typed failure returned by every Actor operation.
type ActionError struct {
	Op   string    // Attempted operation: "transfer", "balance", "deploy_token"
	Code ErrorCode // Failure category
	Err  error     // Underlying cause, if any
}

func (e *ActionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chain action '%s' failed [%s]: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("chain action '%s' failed [%s]", e.Op, e.Code)
}

// Unwrap returns the underlying cause.
func (e *ActionError) Unwrap() error { return e.Err }

// NewActionError constructs an ActionError for op with the given code.
func NewActionError(op string, code ErrorCode, err error) *ActionError {
	return &ActionError{Op: op, Code: code, Err: err}
}

// Actor is the small set of named wallet actions the core may request.
// Implementations must respect context cancellation; callers wrap every
// invocation with a timeout.
type Actor interface {
	// Transfer moves amount of asset to the destination address.
	Transfer(ctx context.Context, to string, amount float64, asset string) (TxRef, error)

	// Balance returns the asset balance of the given address.
	Balance(ctx context.Context, address string) (float64, error)

	// Swap exchanges amount of fromAsset into toAsset at the current rate
	// and returns the amount received.
	Swap(ctx context.Context, fromAsset, toAsset string, amount float64) (float64, TxRef, error)

	// DeployToken deploys a new token contract with the given supply.
	DeployToken(ctx context.Context, name, symbol string, supply float64) (ContractRef, error)
}
