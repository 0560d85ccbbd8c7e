// Package errclass maps raw failures onto a closed taxonomy of error
// kinds with severity, category, and retryability. Classification is a
// pure, total function: every error yields exactly one kind, and an
// already-classified error passes through unchanged.
package errclass

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/driftlabs/batchsend/pkg/ledger"
)

// Severity grades how serious a failure is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Category groups failures by the subsystem they originate in.
type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategoryValidation     Category = "validation"
	CategoryNetwork        Category = "network"
	CategoryTransaction    Category = "transaction"
	CategoryAccount        Category = "account"
	CategoryConfiguration  Category = "configuration"
	CategoryExternal       Category = "external"
	CategorySecurity       Category = "security"
	CategorySystem         Category = "system"
)

// Kind is one member of the closed set of failure kinds.
type Kind string

const (
	KindSignerNotConnected Kind = "signer_not_connected"
	KindInvalidInput       Kind = "invalid_input"
	KindInsufficientFunds  Kind = "insufficient_funds"
	KindInsufficientAsset  Kind = "insufficient_asset_balance"
	KindAccountNotFound    Kind = "account_not_found"
	KindNetworkError       Kind = "network_error"
	KindRateLimited        Kind = "rate_limited"
	KindTimeout            Kind = "timeout"
	KindSimulationFailed   Kind = "simulation_failed"
	KindBlockhashExpired   Kind = "blockhash_expired"
	KindTransactionFailed  Kind = "transaction_failed"
	KindConfiguration      Kind = "configuration"
	KindUnknown            Kind = "unknown"
)

// Classified is an error annotated with its taxonomy entry. It wraps
// the original cause so errors.Is/As keep working through it.
type Classified struct {
	Kind      Kind
	Severity  Severity
	Category  Category
	Retryable bool
	cause     error
}

func (c *Classified) Error() string {
	if c.cause != nil {
		return fmt.Sprintf("%s: %v", c.Kind, c.cause)
	}
	return string(c.Kind)
}

func (c *Classified) Unwrap() error {
	return c.cause
}

// New builds a classified error from a kind and a cause.
func New(kind Kind, cause error) *Classified {
	e := entryFor(kind)
	return &Classified{Kind: kind, Severity: e.severity, Category: e.category, Retryable: e.retryable, cause: cause}
}

// Newf builds a classified error with a formatted cause message.
func Newf(kind Kind, format string, args ...interface{}) *Classified {
	return New(kind, fmt.Errorf(format, args...))
}

type entry struct {
	severity  Severity
	category  Category
	retryable bool
}

// The taxonomy. Non-retryable kinds are terminal regardless of
// attempts remaining; everything else may be re-attempted.
// Simulation rejection stays retryable even though an on-ledger
// execution failure does not: a simulation runs against current state,
// which can change between attempts, while a committed failure is a
// final outcome.
var taxonomy = map[Kind]entry{
	KindSignerNotConnected: {SeverityCritical, CategoryAuthentication, false},
	KindInvalidInput:       {SeverityMedium, CategoryValidation, false},
	KindInsufficientFunds:  {SeverityHigh, CategoryAccount, false},
	KindInsufficientAsset:  {SeverityHigh, CategoryAccount, false},
	KindAccountNotFound:    {SeverityMedium, CategoryAccount, false},
	KindConfiguration:      {SeverityHigh, CategoryConfiguration, false},
	KindTransactionFailed:  {SeverityHigh, CategoryTransaction, false},
	KindNetworkError:       {SeverityMedium, CategoryNetwork, true},
	KindRateLimited:        {SeverityLow, CategoryNetwork, true},
	KindTimeout:            {SeverityMedium, CategoryNetwork, true},
	KindSimulationFailed:   {SeverityMedium, CategoryTransaction, true},
	KindBlockhashExpired:   {SeverityLow, CategoryTransaction, true},
	KindUnknown:            {SeverityMedium, CategorySystem, true},
}

func entryFor(kind Kind) entry {
	if e, ok := taxonomy[kind]; ok {
		return e
	}
	return taxonomy[KindUnknown]
}

var codeKinds = map[ledger.ErrorCode]Kind{
	ledger.CodeNetwork:            KindNetworkError,
	ledger.CodeRateLimited:        KindRateLimited,
	ledger.CodeTimeout:            KindTimeout,
	ledger.CodeInsufficientFunds:  KindInsufficientFunds,
	ledger.CodeInsufficientAsset:  KindInsufficientAsset,
	ledger.CodeAccountNotFound:    KindAccountNotFound,
	ledger.CodeBlockhashExpired:   KindBlockhashExpired,
	ledger.CodeSimulationFailed:   KindSimulationFailed,
	ledger.CodeTransactionFailed:  KindTransactionFailed,
	ledger.CodeSignerNotConnected: KindSignerNotConnected,
	ledger.CodeInvalidInput:       KindInvalidInput,
}

// Classify maps an arbitrary failure onto the taxonomy. Structured
// codes from the client boundary win; message-pattern matching is a
// fallback for errors originating outside the engine's control.
// Classifying nil returns nil.
func Classify(err error) *Classified {
	if err == nil {
		return nil
	}

	// Idempotent re-classification.
	var classified *Classified
	if errors.As(err, &classified) {
		return classified
	}

	if code := ledger.CodeOf(err); code != ledger.CodeNone {
		if kind, ok := codeKinds[code]; ok {
			return New(kind, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(KindTimeout, err)
	}

	return New(kindFromMessage(err.Error()), err)
}

// kindFromMessage is the last-resort substring matcher for foreign
// errors that carry no structured code.
func kindFromMessage(msg string) Kind {
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "signer not connected"),
		strings.Contains(lower, "wallet not connected"):
		return KindSignerNotConnected
	case strings.Contains(lower, "invalid input"),
		strings.Contains(lower, "invalid address"),
		strings.Contains(lower, "invalid amount"):
		return KindInvalidInput
	case strings.Contains(lower, "insufficient funds"),
		strings.Contains(lower, "insufficient balance for fee"):
		return KindInsufficientFunds
	case strings.Contains(lower, "insufficient asset"),
		strings.Contains(lower, "insufficient token balance"):
		return KindInsufficientAsset
	case strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "too many requests"),
		strings.Contains(lower, "429"):
		return KindRateLimited
	case strings.Contains(lower, "timeout"),
		strings.Contains(lower, "timed out"),
		strings.Contains(lower, "deadline exceeded"):
		return KindTimeout
	case strings.Contains(lower, "blockhash"),
		strings.Contains(lower, "block height exceeded"):
		return KindBlockhashExpired
	case strings.Contains(lower, "simulation failed"),
		strings.Contains(lower, "simulate"):
		return KindSimulationFailed
	case strings.Contains(lower, "account not found"),
		strings.Contains(lower, "could not find account"):
		return KindAccountNotFound
	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "no response"),
		strings.Contains(lower, "network"),
		strings.Contains(lower, "eof"):
		return KindNetworkError
	case strings.Contains(lower, "transaction failed"),
		strings.Contains(lower, "custom program error"):
		return KindTransactionFailed
	}

	return KindUnknown
}

// IsRetryable classifies err and reports whether a re-attempt may
// succeed. Nil is not retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable
}
