package ledger

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// InMemoryClient is a self-contained NetworkClient backed by an
// in-process account map. It exists for rehearsal runs and tests;
// nothing it does leaves the process.
type InMemoryClient struct {
	mu       sync.Mutex
	accounts map[Address]Amount
	latency  time.Duration
}

var _ NetworkClient = (*InMemoryClient)(nil)

// NewInMemoryClient creates an empty in-process ledger.
func NewInMemoryClient() *InMemoryClient {
	return &InMemoryClient{
		accounts: make(map[Address]Amount),
		latency:  time.Millisecond,
	}
}

// Fund creates the account if needed and credits it.
func (c *InMemoryClient) Fund(addr Address, amount Amount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[addr] += amount
}

func (c *InMemoryClient) AccountExists(_ context.Context, addr Address) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.accounts[addr]
	return ok, nil
}

func (c *InMemoryClient) Balance(_ context.Context, addr Address) (Amount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accounts[addr], nil
}

func (c *InMemoryClient) EstimateFee(_ context.Context, instructions []Instruction) (uint64, error) {
	return BaseFee + PerInstructionFee*uint64(len(instructions)), nil
}

func (c *InMemoryClient) Simulate(_ context.Context, tx SignedTransaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apply(tx, false)
}

func (c *InMemoryClient) Submit(_ context.Context, tx SignedTransaction) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.apply(tx, true); err != nil {
		return "", err
	}
	return uuid.NewString(), nil
}

func (c *InMemoryClient) Confirm(_ context.Context, _ string, _ ConfirmationLevel, _ time.Duration) error {
	return nil
}

func (c *InMemoryClient) Ping(_ context.Context) (time.Duration, error) {
	return c.latency, nil
}

// apply executes the transaction against the account map. Must be
// called with the mutex held.
func (c *InMemoryClient) apply(tx SignedTransaction, commit bool) error {
	payer := tx.FeePayer
	debits := make(map[Address]Amount)
	credits := make(map[Address]Amount)

	for _, in := range tx.Instructions {
		switch in.Kind {
		case InstructionCreateAccount:
			credits[in.Destination] += 0
		case InstructionTransfer:
			debits[payer] += in.Amount
			credits[in.Destination] += in.Amount
		case InstructionBurn:
			debits[payer] += in.Amount
		case InstructionMint, InstructionWrap, InstructionUnwrap:
			credits[in.Destination] += in.Amount
		}
	}

	for addr, amount := range debits {
		if c.accounts[addr] < amount {
			return NewClientError(CodeInsufficientFunds, "insufficient funds in %s", addr)
		}
	}
	if !commit {
		return nil
	}

	for addr, amount := range debits {
		c.accounts[addr] -= amount
	}
	for addr, amount := range credits {
		c.accounts[addr] += amount
	}
	return nil
}

// StaticSigner is a Signer with a fixed identity that stamps
// transactions with an opaque signature. For rehearsal and tests only.
type StaticSigner struct {
	addr Address
}

var _ Signer = (*StaticSigner)(nil)

// NewStaticSigner creates a signer with a random valid address.
func NewStaticSigner() *StaticSigner {
	raw := make([]byte, AddressLength)
	_, _ = rand.Read(raw)
	return &StaticSigner{addr: Address(base58.Encode(raw))}
}

func (s *StaticSigner) Address() Address {
	return s.addr
}

func (s *StaticSigner) Sign(_ context.Context, tx Transaction) (SignedTransaction, error) {
	return SignedTransaction{Transaction: tx, Signature: "sig-" + uuid.NewString()}, nil
}

// RandomAddress returns a fresh valid base58 address. Handy for
// rehearsal recipient lists and tests.
func RandomAddress() Address {
	raw := make([]byte, AddressLength)
	_, _ = rand.Read(raw)
	return Address(base58.Encode(raw))
}
