// Package service wires the engine together: planner, executor,
// connection health monitor, and the preflight gates, behind one
// Run call.
package service

import (
	"context"

	"github.com/driftlabs/batchsend/pkg/batch"
	"github.com/driftlabs/batchsend/pkg/circuitbreaker"
	"github.com/driftlabs/batchsend/pkg/config"
	"github.com/driftlabs/batchsend/pkg/errclass"
	"github.com/driftlabs/batchsend/pkg/ledger"
	"github.com/driftlabs/batchsend/pkg/logger"
	"github.com/driftlabs/batchsend/pkg/operation"
)

// Service runs disbursements against an injected network client and
// signer. The circuit breaker lives on the service so network health
// is remembered across runs.
type Service struct {
	cfg     *config.Config
	logger  logger.Logger
	client  ledger.NetworkClient
	signer  ledger.Signer
	breaker *circuitbreaker.Breaker
}

// New creates a service around the injected collaborators.
func New(cfg *config.Config, log logger.Logger, client ledger.NetworkClient, signer ledger.Signer) *Service {
	return &Service{
		cfg:     cfg,
		logger:  log,
		client:  client,
		signer:  signer,
		breaker: circuitbreaker.New(cfg.CircuitBreaker, log),
	}
}

// Breaker exposes the connection health monitor, e.g. for the health
// server.
func (s *Service) Breaker() *circuitbreaker.Breaker {
	return s.breaker
}

// Run plans and executes one disbursement over the given recipients.
// The returned result carries partial-failure accounting even when err
// is nil; err is non-nil only when the run could not start at all
// (validation or preflight failure).
func (s *Service) Run(ctx context.Context, inputs []batch.RecipientInput, onProgress batch.ProgressCallback) (*batch.Result, error) {
	if err := s.preflight(ctx); err != nil {
		return nil, err
	}

	planner := batch.NewPlanner(&ledger.ClientResolver{Client: s.client}, s.logger, batch.PlannerOptions{
		BatchSize:           s.cfg.BatchSize,
		AmountDecimals:      s.cfg.AmountDecimals,
		AccountCheckRetries: s.cfg.AccountCheckRetries,
		ResolveChunkSize:    s.cfg.ResolveChunkSize,
	})
	plan, err := planner.Plan(ctx, inputs)
	if err != nil {
		return nil, err
	}
	for _, w := range plan.Warnings {
		s.logger.NoticeWith(logger.Plan, "%s", w)
	}

	executor := batch.NewExecutor(operation.Environment{
		Client: s.client,
		Signer: s.signer,
		Logger: s.logger,
	}, s.breaker, batch.ExecutorOptions{
		BatchDelay:      s.cfg.BatchDelay,
		MaxBatchRetries: s.cfg.MaxBatchRetries,
		PauseOnError:    s.cfg.PauseOnError,
	})

	opCfg := operation.Config{
		MaxRetries:         s.cfg.MaxBatchRetries,
		Timeout:            s.cfg.OperationTimeout,
		Confirmation:       s.cfg.Confirmation,
		PriorityFee:        s.cfg.PriorityFee,
		SimulateBeforeSend: s.cfg.SimulateBeforeSend,
		ValidateBalance:    s.cfg.ValidateBalance,
		DryRun:             s.cfg.DryRun,
	}

	return executor.ExecuteAll(ctx, plan, opCfg, onProgress), nil
}

// preflight gates the run on network health per configuration.
func (s *Service) preflight(ctx context.Context) error {
	if !s.cfg.PreflightValidation {
		return nil
	}

	if s.cfg.NetworkStabilityCheck {
		_, err := batch.ProbeStability(ctx, s.breaker, s.client, s.cfg.StabilitySamples, s.logger)
		return err
	}

	result, err := s.breaker.Check(ctx, s.client.Ping)
	if err != nil {
		return errclass.New(errclass.KindNetworkError, err)
	}
	if !result.Healthy {
		return errclass.Newf(errclass.KindNetworkError, "preflight health check unhealthy: %s", result.Error)
	}
	return nil
}
