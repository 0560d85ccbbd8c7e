package batch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/driftlabs/batchsend/pkg/errclass"
	"github.com/driftlabs/batchsend/pkg/ledger"
	"github.com/driftlabs/batchsend/pkg/logger"
	"github.com/driftlabs/batchsend/pkg/retry"
	"golang.org/x/time/rate"
)

// PlannerOptions tunes intake and partitioning.
type PlannerOptions struct {
	// BatchSize is clamped to [1, MaxBatchSize].
	BatchSize int
	// AmountDecimals interprets intake amounts as display values with
	// this many fractional digits. 0 means smallest units as-is.
	AmountDecimals int32
	// AccountCheckRetries bounds resolution attempts per recipient for
	// transient failures. A definitive "not found" never retries.
	AccountCheckRetries int
	// ResolveChunkSize bounds how many recipients resolve concurrently.
	ResolveChunkSize int
	// ResolveRate paces resolution calls so planning does not swamp
	// the network client. Zero means DefaultResolveRate.
	ResolveRate rate.Limit
}

// MaxBatchSize caps recipients per batch regardless of configuration.
const MaxBatchSize = 20

// DefaultResolveRate paces destination-account lookups during planning.
const DefaultResolveRate rate.Limit = 20

// DefaultPlannerOptions returns the standard planner tuning.
func DefaultPlannerOptions() PlannerOptions {
	return PlannerOptions{
		BatchSize:           15,
		AccountCheckRetries: 3,
		ResolveChunkSize:    50,
		ResolveRate:         DefaultResolveRate,
	}
}

// Planner partitions recipients into executable batches.
type Planner struct {
	resolver ledger.AccountResolver
	logger   logger.Logger
	limiter  *rate.Limiter
	opts     PlannerOptions
}

// NewPlanner creates a planner over the given account resolver.
func NewPlanner(resolver ledger.AccountResolver, log logger.Logger, opts PlannerOptions) *Planner {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.BatchSize > MaxBatchSize {
		opts.BatchSize = MaxBatchSize
	}
	if opts.AccountCheckRetries < 1 {
		opts.AccountCheckRetries = DefaultPlannerOptions().AccountCheckRetries
	}
	if opts.ResolveChunkSize < 1 {
		opts.ResolveChunkSize = DefaultPlannerOptions().ResolveChunkSize
	}
	if opts.ResolveRate <= 0 {
		opts.ResolveRate = DefaultResolveRate
	}
	return &Planner{
		resolver: resolver,
		logger:   log,
		limiter:  rate.NewLimiter(opts.ResolveRate, opts.ResolveChunkSize),
		opts:     opts,
	}
}

// Plan validates and normalizes the recipient list, resolves every
// destination account, and partitions recipients into fixed-size
// batches preserving input order. Validation failures abort before any
// partitioning; duplicates produce warnings, never merges. Planning
// the same list twice against unchanged network state yields identical
// partitioning and totals.
func (p *Planner) Plan(ctx context.Context, inputs []RecipientInput) (*Plan, error) {
	if len(inputs) == 0 {
		return nil, errclass.Newf(errclass.KindInvalidInput, "recipient list is empty")
	}

	recipients, warnings, err := p.normalize(inputs)
	if err != nil {
		return nil, err
	}

	// Resolution runs to completion before any partitioning or
	// filtering sees the results.
	records, err := p.resolveAll(ctx, recipients)
	if err != nil {
		return nil, err
	}

	plan, err := p.partition(records)
	if err != nil {
		return nil, err
	}
	plan.Warnings = warnings

	p.logger.InfoWith(logger.Plan, "planned %d recipients into %d batches (total %d units, %d accounts to create)",
		plan.TotalRecipients, len(plan.Batches), plan.TotalAmount, countAccountsToCreate(plan))
	return plan, nil
}

// normalize converts raw inputs into validated recipients, collecting
// every validation finding rather than stopping at the first.
func (p *Planner) normalize(inputs []RecipientInput) ([]Recipient, []string, error) {
	var (
		recipients []Recipient
		errs       []string
		warnings   []string
		seen       = map[ledger.Address]ledger.Amount{}
	)

	for i, in := range inputs {
		addr, err := ledger.ParseAddress(in.Address)
		if err != nil {
			errs = append(errs, fmt.Sprintf("recipient %d: %v", i, err))
			continue
		}
		amount, err := ledger.ParseAmount(in.Amount, p.opts.AmountDecimals)
		if err != nil {
			errs = append(errs, fmt.Sprintf("recipient %d (%s): %v", i, addr, err))
			continue
		}

		if prev, dup := seen[addr]; dup {
			if prev == amount {
				warnings = append(warnings, fmt.Sprintf("duplicate recipient %s with amount %d; amounts are not merged", addr, amount))
			} else {
				warnings = append(warnings, fmt.Sprintf("recipient %s appears with different amounts (%d and %d); amounts are not merged", addr, prev, amount))
			}
		} else {
			seen[addr] = amount
		}

		recipients = append(recipients, Recipient{Address: addr, Amount: amount})
	}

	if len(errs) > 0 {
		return nil, nil, errclass.Newf(errclass.KindInvalidInput, "recipient validation failed: %s", strings.Join(errs, "; "))
	}
	return recipients, warnings, nil
}

// resolveAll resolves destination accounts concurrently in bounded
// chunks, pacing calls through the rate limiter.
func (p *Planner) resolveAll(ctx context.Context, recipients []Recipient) ([]*RecipientRecord, error) {
	records := make([]*RecipientRecord, len(recipients))
	resolved := make([]bool, len(recipients))

	for chunkStart := 0; chunkStart < len(recipients); chunkStart += p.opts.ResolveChunkSize {
		chunkEnd := chunkStart + p.opts.ResolveChunkSize
		if chunkEnd > len(recipients) {
			chunkEnd = len(recipients)
		}

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			firstErr error
		)
		for i := chunkStart; i < chunkEnd; i++ {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, err
			}

			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				record, err := p.resolveOne(ctx, recipients[i])
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					return
				}
				records[i] = record
				resolved[i] = true
			}(i)
		}
		wg.Wait()

		if firstErr != nil {
			return nil, firstErr
		}
	}

	for i := range resolved {
		if !resolved[i] {
			return nil, errclass.Newf(errclass.KindNetworkError, "account resolution incomplete for recipient %s", recipients[i].Address)
		}
	}
	return records, nil
}

// resolveOne resolves a single recipient with bounded retries for
// transient failures. "Account does not exist" is a definitive answer
// and short-circuits the retry loop, because the resolver reports it
// without an error.
func (p *Planner) resolveOne(ctx context.Context, r Recipient) (*RecipientRecord, error) {
	var (
		account ledger.Address
		exists  bool
	)

	opts := retry.Options{
		MaxAttempts: p.opts.AccountCheckRetries,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Factor:      2.0,
	}
	err := retry.Do(ctx, p.logger, opts, func(ctx context.Context) error {
		var resolveErr error
		account, exists, resolveErr = p.resolver.Resolve(ctx, r.Address)
		return resolveErr
	})
	if err != nil {
		return nil, fmt.Errorf("resolving destination account for %s: %w", r.Address, err)
	}

	record := &RecipientRecord{
		Recipient:          r,
		DestinationAccount: account,
		NeedsCreation:      !exists,
		Status:             RecipientPending,
	}
	if record.NeedsCreation {
		p.logger.DebugWith(logger.Plan, "destination account %s for %s needs creation", account, r.Address)
	}
	return record, nil
}

// partition slices records into fixed-size, in-order batches with a
// gap-free 0-based index sequence. Totals that would wrap the amount
// range fail the plan; a wrapped total would break conservation and
// let an unpayable batch through the balance check.
func (p *Planner) partition(records []*RecipientRecord) (*Plan, error) {
	plan := &Plan{TotalRecipients: len(records)}

	batchCount := (len(records) + p.opts.BatchSize - 1) / p.opts.BatchSize
	plan.Batches = make([]*Batch, 0, batchCount)

	for index := 0; index < batchCount; index++ {
		startIdx := index * p.opts.BatchSize
		endIdx := startIdx + p.opts.BatchSize
		if endIdx > len(records) {
			endIdx = len(records)
		}

		b := &Batch{Index: index, Status: StatusPending}
		for _, record := range records[startIdx:endIdx] {
			record.BatchIndex = index
			b.Recipients = append(b.Recipients, record)
			if b.TotalAmount+record.Amount < b.TotalAmount {
				return nil, errclass.Newf(errclass.KindInvalidInput,
					"batch %d total overflows adding %d for %s", index, record.Amount, record.Address)
			}
			b.TotalAmount += record.Amount
			if record.NeedsCreation {
				b.AccountsToCreate = append(b.AccountsToCreate, AccountToCreate{
					Recipient:          record.Address,
					DestinationAccount: record.DestinationAccount,
				})
			}
		}
		plan.Batches = append(plan.Batches, b)
		if plan.TotalAmount+b.TotalAmount < plan.TotalAmount {
			return nil, errclass.Newf(errclass.KindInvalidInput,
				"plan total overflows at batch %d", index)
		}
		plan.TotalAmount += b.TotalAmount
	}

	return plan, nil
}

func countAccountsToCreate(plan *Plan) int {
	total := 0
	for _, b := range plan.Batches {
		total += len(b.AccountsToCreate)
	}
	return total
}
