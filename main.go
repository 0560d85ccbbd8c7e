package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/driftlabs/batchsend/pkg/batch"
	"github.com/driftlabs/batchsend/pkg/config"
	"github.com/driftlabs/batchsend/pkg/health"
	"github.com/driftlabs/batchsend/pkg/ledger"
	"github.com/driftlabs/batchsend/pkg/logger"
	"github.com/driftlabs/batchsend/pkg/service"
)

// The binary is the rehearsal harness for the engine: it plans and
// dry-runs a recipients file against an in-process ledger so operators
// can validate batch shapes, fee totals, and failure accounting before
// wiring the engine to a live network client. Live runs consume the
// packages directly with their own NetworkClient and Signer.
func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if !cfg.DryRun {
		log.Fatalf("This binary only runs rehearsals; set DRY_RUN=true, or embed the engine with a real network client")
	}
	if cfg.RecipientsFile == "" {
		log.Fatalf("RECIPIENTS_FILE is required")
	}

	recipients, err := loadRecipients(cfg.RecipientsFile)
	if err != nil {
		log.Fatalf("Failed to load recipients: %v", err)
	}

	stdLogger := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		stdLogger.Notice("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	client := ledger.NewInMemoryClient()
	signer := ledger.NewStaticSigner()
	// A rehearsal still walks the balance check, so fund the signer
	// generously.
	client.Fund(signer.Address(), ledger.Amount(1<<62))

	svc := service.New(cfg, stdLogger, client, signer)

	healthServer := health.NewServer(cfg.MetricsPort, client, svc.Breaker(), stdLogger)
	go healthServer.Start()

	stdLogger.Info("Rehearsing disbursement to %d recipients (batch size %d)", len(recipients), cfg.BatchSize)
	result, err := svc.Run(ctx, recipients, func(p batch.Progress) {
		stdLogger.InfoWith(logger.Exec, "progress: batch %d/%d, %d recipients processed, %d failed, ~%v remaining",
			p.CurrentBatch+1, p.TotalBatches, p.ProcessedRecipients, p.FailedRecipients, p.EstimatedTimeRemaining)
	})
	if err != nil {
		log.Fatalf("Run aborted before execution: %v", err)
	}

	stdLogger.Info("Result: success=%v batches=%d/%d recipients=%d/%d sent=%d elapsed=%v rate=%.2f%%",
		result.Success, result.SuccessfulBatches, result.SuccessfulBatches+result.FailedBatches,
		result.RecipientsProcessed, result.RecipientsProcessed+result.RecipientsFailed,
		result.TotalAmountSent, result.Elapsed, result.SuccessRate)

	if !result.Success {
		os.Exit(1)
	}
}

// loadRecipients reads a JSON array of {address, amount} pairs.
func loadRecipients(path string) ([]batch.RecipientInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var recipients []batch.RecipientInput
	if err := json.Unmarshal(data, &recipients); err != nil {
		return nil, err
	}
	return recipients, nil
}
