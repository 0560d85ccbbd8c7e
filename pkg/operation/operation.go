// Package operation is the shared single-operation lifecycle: every
// ledger-mutating action runs the same ordered stages
// (validate, prepare, estimate fee, check balance, build, simulate,
// submit, confirm), with concrete operations supplying only their
// variant-specific hooks.
package operation

import (
	"context"
	"time"

	"github.com/driftlabs/batchsend/pkg/errclass"
	"github.com/driftlabs/batchsend/pkg/ledger"
	"github.com/driftlabs/batchsend/pkg/logger"
)

// Environment bundles the injected collaborators an operation needs.
type Environment struct {
	Client ledger.NetworkClient
	Signer ledger.Signer
	Logger logger.Logger
}

// Config is the per-operation policy, immutable once constructed.
type Config struct {
	MaxRetries         int
	Timeout            time.Duration
	Confirmation       ledger.ConfirmationLevel
	PriorityFee        uint64
	SimulateBeforeSend bool
	ValidateBalance    bool
	DryRun             bool
}

// DefaultConfig returns the standard operation policy.
func DefaultConfig() Config {
	return Config{
		MaxRetries:         3,
		Timeout:            90 * time.Second,
		Confirmation:       ledger.ConfirmationFinalized,
		SimulateBeforeSend: true,
		ValidateBalance:    true,
	}
}

// ValidationResult collects validation findings before any network
// call is made. Validation failures are terminal by definition.
type ValidationResult struct {
	IsValid  bool
	Errors   []string
	Warnings []string
}

// Valid returns a passing result with optional warnings.
func Valid(warnings ...string) ValidationResult {
	return ValidationResult{IsValid: true, Warnings: warnings}
}

// Invalid returns a failing result with the given findings.
func Invalid(errors ...string) ValidationResult {
	return ValidationResult{IsValid: false, Errors: errors}
}

// Operation is one ledger-mutating action. Implementations supply
// parameter validation, data preparation, fee estimation, instruction
// construction, and the outgoing total; the Execute driver supplies
// everything else.
type Operation interface {
	// Name identifies the operation in logs, metrics and results.
	Name() string

	// Validate checks parameters locally, before any network call.
	Validate() ValidationResult

	// Prepare resolves accounts and fetches whatever on-ledger state
	// the operation needs before it can build instructions.
	Prepare(ctx context.Context, env Environment) error

	// EstimateFee quotes the fee for this operation.
	EstimateFee(ctx context.Context, env Environment, cfg Config) (ledger.FeeEstimation, error)

	// Instructions builds the ledger instructions. Only called after
	// Prepare has succeeded.
	Instructions() ([]ledger.Instruction, error)

	// Total is the outgoing amount the signer must cover, excluding
	// fees.
	Total() ledger.Amount
}

// Result is the terminal record of one operation. Immutable once
// returned.
type Result struct {
	Success       bool
	Operation     string
	TransactionID string
	Fee           ledger.FeeEstimation
	AmountSent    ledger.Amount
	Elapsed       time.Duration
	Warnings      []string
	Err           *errclass.Classified
}
