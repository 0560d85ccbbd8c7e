package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorCode is a structured failure code reported at the client
// boundary. Codes are preferred over error-message matching when
// classifying failures; clients should attach one whenever they can.
type ErrorCode string

const (
	CodeNone               ErrorCode = ""
	CodeNetwork            ErrorCode = "network"
	CodeRateLimited        ErrorCode = "rate_limited"
	CodeTimeout            ErrorCode = "timeout"
	CodeInsufficientFunds  ErrorCode = "insufficient_funds"
	CodeInsufficientAsset  ErrorCode = "insufficient_asset_balance"
	CodeAccountNotFound    ErrorCode = "account_not_found"
	CodeBlockhashExpired   ErrorCode = "blockhash_expired"
	CodeSimulationFailed   ErrorCode = "simulation_failed"
	CodeTransactionFailed  ErrorCode = "transaction_failed"
	CodeSignerNotConnected ErrorCode = "signer_not_connected"
	CodeInvalidInput       ErrorCode = "invalid_input"
)

// ClientError is a failure from the network client carrying a
// structured code alongside the human-readable message.
type ClientError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ClientError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// NewClientError builds a coded client error.
func NewClientError(code ErrorCode, format string, args ...interface{}) *ClientError {
	return &ClientError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the structured code from an error chain, or CodeNone.
func CodeOf(err error) ErrorCode {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeNone
}

// NetworkClient is the injected boundary to the remote ledger service.
// The engine never implements the underlying protocol itself; every
// network capability it needs is expressed here.
type NetworkClient interface {
	// AccountExists reports whether the account at addr exists on the
	// ledger. A definitive "no" is (false, nil), not an error.
	AccountExists(ctx context.Context, addr Address) (bool, error)

	// Balance returns the spendable balance of addr in smallest units.
	Balance(ctx context.Context, addr Address) (Amount, error)

	// EstimateFee quotes the network fee for the given instructions.
	EstimateFee(ctx context.Context, instructions []Instruction) (uint64, error)

	// Simulate executes the signed transaction without committing it.
	// A rejected simulation returns a CodeSimulationFailed error.
	Simulate(ctx context.Context, tx SignedTransaction) error

	// Submit broadcasts the signed transaction and returns its id.
	Submit(ctx context.Context, tx SignedTransaction) (string, error)

	// Confirm waits until the transaction reaches the requested
	// confirmation level or the timeout elapses. Timeouts return a
	// CodeTimeout error; a definitive on-ledger failure returns
	// CodeTransactionFailed.
	Confirm(ctx context.Context, txID string, level ConfirmationLevel, timeout time.Duration) error

	// Ping performs a cheap read-only round-trip and returns its
	// latency. Used by the connection health monitor.
	Ping(ctx context.Context) (time.Duration, error)
}

// Signer signs transactions on behalf of a stable identity.
// Safe for repeated sequential use; not designed for concurrent calls.
type Signer interface {
	Sign(ctx context.Context, tx Transaction) (SignedTransaction, error)
	Address() Address
}

// AccountResolver resolves the ledger-side account that will receive
// funds for a recipient, and whether it already exists. Transient
// resolution failures return an error; a missing account is
// (addr, false, nil) so callers can distinguish "not found" from
// "could not check".
type AccountResolver interface {
	Resolve(ctx context.Context, owner Address) (account Address, exists bool, err error)
}

// ClientResolver adapts a NetworkClient into an AccountResolver for
// plain value transfers, where the destination account is the
// recipient address itself.
type ClientResolver struct {
	Client NetworkClient
}

func (r *ClientResolver) Resolve(ctx context.Context, owner Address) (Address, bool, error) {
	exists, err := r.Client.AccountExists(ctx, owner)
	if err != nil {
		return owner, false, err
	}
	return owner, exists, nil
}
