package operation

import (
	"context"

	"github.com/driftlabs/batchsend/pkg/errclass"
	"github.com/driftlabs/batchsend/pkg/ledger"
)

// Mint issues new units to a destination account. The signer must be
// the issuing authority; the ledger rejects the transaction otherwise.
type Mint struct {
	To         ledger.Address
	Amount     ledger.Amount
	AutoCreate bool

	destinationExists bool
}

func (m *Mint) Name() string { return "mint" }

func (m *Mint) Validate() ValidationResult {
	var errs []string
	if m.To.IsZero() {
		errs = append(errs, "destination address is required")
	} else if _, err := ledger.ParseAddress(m.To.String()); err != nil {
		errs = append(errs, err.Error())
	}
	if m.Amount == 0 {
		errs = append(errs, "amount must be positive")
	}
	if len(errs) > 0 {
		return Invalid(errs...)
	}
	return Valid()
}

func (m *Mint) Prepare(ctx context.Context, env Environment) error {
	exists, err := env.Client.AccountExists(ctx, m.To)
	if err != nil {
		return err
	}
	if !exists && !m.AutoCreate {
		return errclass.Newf(errclass.KindAccountNotFound,
			"mint destination %s does not exist and auto-creation is disabled", m.To)
	}
	m.destinationExists = exists
	return nil
}

func (m *Mint) EstimateFee(_ context.Context, _ Environment, cfg Config) (ledger.FeeEstimation, error) {
	breakdown := map[string]uint64{
		"base":        ledger.BaseFee,
		"instruction": ledger.PerInstructionFee,
		"priority":    cfg.PriorityFee,
	}
	if !m.destinationExists {
		breakdown["rent"] = ledger.AccountCreationRent
	}
	total := uint64(0)
	for _, v := range breakdown {
		total += v
	}
	return ledger.FeeEstimation{EstimatedFee: total, Breakdown: breakdown}, nil
}

func (m *Mint) Instructions() ([]ledger.Instruction, error) {
	var instructions []ledger.Instruction
	if !m.destinationExists {
		instructions = append(instructions, ledger.Instruction{
			Kind:        ledger.InstructionCreateAccount,
			Destination: m.To,
		})
	}
	instructions = append(instructions, ledger.Instruction{
		Kind:        ledger.InstructionMint,
		Destination: m.To,
		Amount:      m.Amount,
	})
	return instructions, nil
}

// Total is zero: minting creates units rather than spending the
// signer's balance; only rent and fees are paid.
func (m *Mint) Total() ledger.Amount { return 0 }
