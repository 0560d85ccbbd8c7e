package config

import (
	"fmt"
	"log"
	"time"

	"github.com/driftlabs/batchsend/pkg/circuitbreaker"
	"github.com/driftlabs/batchsend/pkg/ledger"
	"github.com/driftlabs/batchsend/pkg/logger"
	"github.com/joho/godotenv"
)

// Config holds the configuration for the batch send engine
type Config struct {
	// Batch execution surface
	BatchSize       int
	BatchDelay      time.Duration
	MaxBatchRetries int
	Confirmation    ledger.ConfirmationLevel
	PriorityFee     uint64
	DryRun          bool
	PauseOnError    bool

	// Operation lifecycle gates
	SimulateBeforeSend bool
	ValidateBalance    bool
	OperationTimeout   time.Duration

	// Preflight gates
	PreflightValidation   bool
	NetworkStabilityCheck bool
	StabilitySamples      int

	// Planner tuning
	AmountDecimals      int32
	AccountCheckRetries int
	ResolveChunkSize    int

	// Ambient
	MetricsPort    string
	RecipientsFile string
	CircuitBreaker circuitbreaker.Config
	LoggerConfig   LoggerConfig
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	batchSize, err := GetEnvBatchSize()
	if err != nil {
		return nil, err
	}

	batchDelay, err := GetEnvBatchDelay()
	if err != nil {
		return nil, err
	}

	maxBatchRetries, err := GetEnvMaxBatchRetries()
	if err != nil {
		return nil, err
	}

	confirmation, err := GetEnvConfirmation()
	if err != nil {
		return nil, err
	}

	priorityFee, err := GetEnvPriorityFee()
	if err != nil {
		return nil, err
	}

	dryRun, err := GetEnvBool("DRY_RUN", DefaultDryRun)
	if err != nil {
		return nil, err
	}

	pauseOnError, err := GetEnvBool("PAUSE_ON_ERROR", DefaultPauseOnError)
	if err != nil {
		return nil, err
	}

	simulate, err := GetEnvBool("SIMULATE_BEFORE_SEND", DefaultSimulateBeforeSend)
	if err != nil {
		return nil, err
	}

	validateBalance, err := GetEnvBool("VALIDATE_BALANCE", DefaultValidateBalance)
	if err != nil {
		return nil, err
	}

	opTimeout, err := GetEnvOperationTimeout()
	if err != nil {
		return nil, err
	}

	preflight, err := GetEnvBool("PREFLIGHT_VALIDATION", DefaultPreflightValidation)
	if err != nil {
		return nil, err
	}

	stability, err := GetEnvBool("NETWORK_STABILITY_CHECK", DefaultNetworkStabilityCheck)
	if err != nil {
		return nil, err
	}

	stabilitySamples, err := GetEnvStabilitySamples()
	if err != nil {
		return nil, err
	}

	decimals, err := GetEnvAmountDecimals()
	if err != nil {
		return nil, err
	}

	accountRetries, err := GetEnvAccountCheckRetries()
	if err != nil {
		return nil, err
	}

	chunkSize, err := GetEnvResolveChunkSize()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	breakerCfg, err := GetEnvCircuitBreakerConfig()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvBool("LOG_COLORING", DefaultLogColoring)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BatchSize:             batchSize,
		BatchDelay:            batchDelay,
		MaxBatchRetries:       maxBatchRetries,
		Confirmation:          confirmation,
		PriorityFee:           priorityFee,
		DryRun:                dryRun,
		PauseOnError:          pauseOnError,
		SimulateBeforeSend:    simulate,
		ValidateBalance:       validateBalance,
		OperationTimeout:      opTimeout,
		PreflightValidation:   preflight,
		NetworkStabilityCheck: stability,
		StabilitySamples:      stabilitySamples,
		AmountDecimals:        decimals,
		AccountCheckRetries:   accountRetries,
		ResolveChunkSize:      chunkSize,
		MetricsPort:           metricsPort,
		RecipientsFile:        GetEnvString("RECIPIENTS_FILE", ""),
		CircuitBreaker:        breakerCfg,
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	cfg.applyLimits()
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyLimits clamps tunables into their safe ranges rather than
// failing: batch size to [1, MaxBatchSize], batch delay to its floor,
// priority fee to its cap.
func (c *Config) applyLimits() {
	if c.BatchSize < 1 {
		c.BatchSize = 1
	}
	if c.BatchSize > MaxBatchSize {
		c.BatchSize = MaxBatchSize
	}
	if c.BatchDelay < MinBatchDelay {
		c.BatchDelay = MinBatchDelay
	}
	if c.PriorityFee > MaxPriorityFee {
		c.PriorityFee = MaxPriorityFee
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.MaxBatchRetries < 1 {
		return fmt.Errorf("MAX_BATCH_RETRIES must be at least 1")
	}
	if !cfg.Confirmation.Valid() {
		return fmt.Errorf("CONFIRMATION_STRATEGY must be one of processed, confirmed, finalized")
	}
	if cfg.OperationTimeout <= 0 {
		return fmt.Errorf("OPERATION_TIMEOUT_SECONDS must be positive")
	}
	if cfg.AccountCheckRetries < 1 {
		return fmt.Errorf("ACCOUNT_CHECK_RETRIES must be at least 1")
	}
	if cfg.ResolveChunkSize < 1 {
		return fmt.Errorf("RESOLVE_CHUNK_SIZE must be at least 1")
	}
	return nil
}
