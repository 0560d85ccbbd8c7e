package ledger

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// AddressLength is the raw byte length of a ledger address.
const AddressLength = 32

// Address is a base58-encoded ledger account address.
type Address string

// ParseAddress validates and returns a ledger address.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return "", fmt.Errorf("empty address")
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %v", s, err)
	}
	if len(raw) != AddressLength {
		return "", fmt.Errorf("invalid address %q: expected %d bytes, got %d", s, AddressLength, len(raw))
	}
	return Address(s), nil
}

// String returns the base58 form of the address.
func (a Address) String() string {
	return string(a)
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == ""
}

// ConfirmationLevel is the durability required before a submitted
// transaction is considered final.
type ConfirmationLevel string

const (
	ConfirmationProcessed ConfirmationLevel = "processed"
	ConfirmationConfirmed ConfirmationLevel = "confirmed"
	ConfirmationFinalized ConfirmationLevel = "finalized"
)

// Weaker returns the next weaker confirmation level and whether one
// exists. Finalized degrades to confirmed, confirmed to processed.
func (c ConfirmationLevel) Weaker() (ConfirmationLevel, bool) {
	switch c {
	case ConfirmationFinalized:
		return ConfirmationConfirmed, true
	case ConfirmationConfirmed:
		return ConfirmationProcessed, true
	default:
		return c, false
	}
}

// Valid reports whether the level is one of the known strengths.
func (c ConfirmationLevel) Valid() bool {
	switch c {
	case ConfirmationProcessed, ConfirmationConfirmed, ConfirmationFinalized:
		return true
	}
	return false
}

// InstructionKind identifies what an instruction does on the ledger.
type InstructionKind string

const (
	InstructionTransfer      InstructionKind = "transfer"
	InstructionCreateAccount InstructionKind = "create_account"
	InstructionBurn          InstructionKind = "burn"
	InstructionWrap          InstructionKind = "wrap"
	InstructionUnwrap        InstructionKind = "unwrap"
	InstructionMint          InstructionKind = "mint"
)

// Instruction is a single ledger mutation inside a transaction.
type Instruction struct {
	Kind        InstructionKind
	Source      Address
	Destination Address
	Amount      Amount
}

// Transaction is an unsigned group of instructions with fee hints.
type Transaction struct {
	Instructions []Instruction
	FeePayer     Address
	PriorityFee  uint64
}

// SignedTransaction is a transaction carrying the signer's signature.
type SignedTransaction struct {
	Transaction
	Signature string
}

// FeeEstimation is a fee quote with a per-component breakdown.
type FeeEstimation struct {
	EstimatedFee uint64
	Breakdown    map[string]uint64
}
