package operation

import (
	"context"
	"fmt"

	"github.com/driftlabs/batchsend/pkg/errclass"
	"github.com/driftlabs/batchsend/pkg/ledger"
)

// Transfer moves an amount from the signer to a single recipient,
// creating the destination account first when allowed.
type Transfer struct {
	To         ledger.Address
	Amount     ledger.Amount
	AutoCreate bool

	destinationExists bool
	prepared          bool
}

func (t *Transfer) Name() string { return "transfer" }

func (t *Transfer) Validate() ValidationResult {
	var errs []string
	if t.To.IsZero() {
		errs = append(errs, "recipient address is required")
	} else if _, err := ledger.ParseAddress(t.To.String()); err != nil {
		errs = append(errs, err.Error())
	}
	if t.Amount == 0 {
		errs = append(errs, "amount must be positive")
	}
	if len(errs) > 0 {
		return Invalid(errs...)
	}
	return Valid()
}

func (t *Transfer) Prepare(ctx context.Context, env Environment) error {
	exists, err := env.Client.AccountExists(ctx, t.To)
	if err != nil {
		return err
	}
	if !exists && !t.AutoCreate {
		return errclass.Newf(errclass.KindAccountNotFound,
			"destination account %s does not exist and auto-creation is disabled", t.To)
	}
	t.destinationExists = exists
	t.prepared = true
	return nil
}

func (t *Transfer) EstimateFee(_ context.Context, _ Environment, cfg Config) (ledger.FeeEstimation, error) {
	breakdown := map[string]uint64{
		"base":        ledger.BaseFee,
		"instruction": ledger.PerInstructionFee,
		"priority":    cfg.PriorityFee,
	}
	if !t.destinationExists {
		breakdown["rent"] = ledger.AccountCreationRent
	}
	total := uint64(0)
	for _, v := range breakdown {
		total += v
	}
	return ledger.FeeEstimation{EstimatedFee: total, Breakdown: breakdown}, nil
}

func (t *Transfer) Instructions() ([]ledger.Instruction, error) {
	if !t.prepared {
		return nil, fmt.Errorf("transfer instructions requested before prepare")
	}
	var instructions []ledger.Instruction
	if !t.destinationExists {
		instructions = append(instructions, ledger.Instruction{
			Kind:        ledger.InstructionCreateAccount,
			Destination: t.To,
		})
	}
	instructions = append(instructions, ledger.Instruction{
		Kind:        ledger.InstructionTransfer,
		Destination: t.To,
		Amount:      t.Amount,
	})
	return instructions, nil
}

func (t *Transfer) Total() ledger.Amount { return t.Amount }
