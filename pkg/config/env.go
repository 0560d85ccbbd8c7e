package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/driftlabs/batchsend/pkg/circuitbreaker"
	"github.com/driftlabs/batchsend/pkg/ledger"
	"github.com/driftlabs/batchsend/pkg/logger"
)

const (
	// DefaultBatchSize defines how many recipients go into one on-ledger submission
	DefaultBatchSize = 15

	// MaxBatchSize caps the batch size regardless of configuration
	MaxBatchSize = 20

	// DefaultBatchDelayMs defines the pause between batches in milliseconds
	DefaultBatchDelayMs = 3000

	// MinBatchDelayMs is the floor for the inter-batch pause, enforced for network stability
	MinBatchDelayMs = 2000

	// DefaultMaxBatchRetries defines the retry attempts per batch
	DefaultMaxBatchRetries = 3

	// DefaultConfirmation is the target confirmation strength
	DefaultConfirmation = "finalized"

	// DefaultPriorityFee is the extra fee hint per batch in smallest units
	DefaultPriorityFee = 0

	// MaxPriorityFee caps the configured priority fee
	MaxPriorityFee = 50000

	// DefaultDryRun builds and signs but never submits when true
	DefaultDryRun = false

	// DefaultPauseOnError stops future batches after a failure when true
	DefaultPauseOnError = false

	// DefaultSimulateBeforeSend runs a simulation before every submit
	DefaultSimulateBeforeSend = true

	// DefaultValidateBalance checks the signer balance before building
	DefaultValidateBalance = true

	// DefaultOperationTimeoutSeconds bounds one operation lifecycle
	DefaultOperationTimeoutSeconds = 90

	// DefaultPreflightValidation runs a network-stability probe before starting
	DefaultPreflightValidation = true

	// DefaultNetworkStabilityCheck gates the run on sampled round-trip latency
	DefaultNetworkStabilityCheck = true

	// DefaultStabilitySamples is how many round-trips the probe samples
	DefaultStabilitySamples = 5

	// DefaultAmountDecimals interprets recipient amounts as display values
	// with this many fractional digits; 0 means smallest units as-is
	DefaultAmountDecimals = 0

	// DefaultAccountCheckRetries bounds destination-account resolution attempts
	DefaultAccountCheckRetries = 3

	// DefaultResolveChunkSize bounds concurrent account resolution during planning
	DefaultResolveChunkSize = 50

	// DefaultMetricsPort defines the default port for the health and metrics server
	DefaultMetricsPort = "8080"

	// DefaultLogColoring enables colored component prefixes
	DefaultLogColoring = true
)

// MinBatchDelay is MinBatchDelayMs as a duration.
const MinBatchDelay = MinBatchDelayMs * time.Millisecond

// GetEnvString returns the environment variable or a fallback.
func GetEnvString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// GetEnvInt parses an integer environment variable with a fallback.
func GetEnvInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %v", key, val, err)
	}
	return parsed, nil
}

// GetEnvBool parses a boolean environment variable with a fallback.
func GetEnvBool(key string, fallback bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %v", key, val, err)
	}
	return parsed, nil
}

// GetEnvBatchSize returns the configured recipients-per-batch count.
func GetEnvBatchSize() (int, error) {
	return GetEnvInt("BATCH_SIZE", DefaultBatchSize)
}

// GetEnvBatchDelay returns the configured inter-batch pause.
func GetEnvBatchDelay() (time.Duration, error) {
	ms, err := GetEnvInt("BATCH_DELAY_MS", DefaultBatchDelayMs)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// GetEnvMaxBatchRetries returns the per-batch retry budget.
func GetEnvMaxBatchRetries() (int, error) {
	return GetEnvInt("MAX_BATCH_RETRIES", DefaultMaxBatchRetries)
}

// GetEnvConfirmation returns the target confirmation strength.
func GetEnvConfirmation() (ledger.ConfirmationLevel, error) {
	level := ledger.ConfirmationLevel(GetEnvString("CONFIRMATION_STRATEGY", DefaultConfirmation))
	if !level.Valid() {
		return "", fmt.Errorf("invalid CONFIRMATION_STRATEGY value %q", level)
	}
	return level, nil
}

// GetEnvPriorityFee returns the per-batch priority fee hint.
func GetEnvPriorityFee() (uint64, error) {
	fee, err := GetEnvInt("PRIORITY_FEE", DefaultPriorityFee)
	if err != nil {
		return 0, err
	}
	if fee < 0 {
		return 0, fmt.Errorf("PRIORITY_FEE must not be negative")
	}
	return uint64(fee), nil
}

// GetEnvOperationTimeout returns the single-operation timeout budget.
func GetEnvOperationTimeout() (time.Duration, error) {
	secs, err := GetEnvInt("OPERATION_TIMEOUT_SECONDS", DefaultOperationTimeoutSeconds)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

// GetEnvStabilitySamples returns the preflight probe sample count.
func GetEnvStabilitySamples() (int, error) {
	return GetEnvInt("STABILITY_SAMPLES", DefaultStabilitySamples)
}

// GetEnvAmountDecimals returns the intake amount precision.
func GetEnvAmountDecimals() (int32, error) {
	d, err := GetEnvInt("AMOUNT_DECIMALS", DefaultAmountDecimals)
	if err != nil {
		return 0, err
	}
	if d < 0 || d > 18 {
		return 0, fmt.Errorf("AMOUNT_DECIMALS must be between 0 and 18")
	}
	return int32(d), nil
}

// GetEnvAccountCheckRetries returns the account-resolution retry budget.
func GetEnvAccountCheckRetries() (int, error) {
	return GetEnvInt("ACCOUNT_CHECK_RETRIES", DefaultAccountCheckRetries)
}

// GetEnvResolveChunkSize returns the planner resolution chunk size.
func GetEnvResolveChunkSize() (int, error) {
	return GetEnvInt("RESOLVE_CHUNK_SIZE", DefaultResolveChunkSize)
}

// GetEnvMetricsPort returns the health and metrics server port.
func GetEnvMetricsPort() (string, error) {
	port := GetEnvString("METRICS_PORT", DefaultMetricsPort)
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value %q", port)
	}
	return port, nil
}

// GetEnvCircuitBreakerConfig assembles the breaker tuning from its
// individual environment knobs.
func GetEnvCircuitBreakerConfig() (circuitbreaker.Config, error) {
	defaults := circuitbreaker.DefaultConfig()

	threshold, err := GetEnvInt("CB_FAILURE_THRESHOLD", defaults.FailureThreshold)
	if err != nil {
		return circuitbreaker.Config{}, err
	}
	successes, err := GetEnvInt("CB_SUCCESS_THRESHOLD", defaults.SuccessThreshold)
	if err != nil {
		return circuitbreaker.Config{}, err
	}
	timeoutSecs, err := GetEnvInt("CB_OPEN_TIMEOUT_SECONDS", int(defaults.OpenTimeout/time.Second))
	if err != nil {
		return circuitbreaker.Config{}, err
	}
	ceilingSecs, err := GetEnvInt("CB_LATENCY_CEILING_SECONDS", int(defaults.LatencyCeiling/time.Second))
	if err != nil {
		return circuitbreaker.Config{}, err
	}
	windowSecs, err := GetEnvInt("CB_MONITORING_PERIOD_SECONDS", int(defaults.MonitoringPeriod/time.Second))
	if err != nil {
		return circuitbreaker.Config{}, err
	}

	return circuitbreaker.Config{
		FailureThreshold: threshold,
		SuccessThreshold: successes,
		OpenTimeout:      time.Duration(timeoutSecs) * time.Second,
		LatencyCeiling:   time.Duration(ceilingSecs) * time.Second,
		MonitoringPeriod: time.Duration(windowSecs) * time.Second,
	}, nil
}

// GetEnvLogLevel returns the configured log level.
func GetEnvLogLevel() (logger.Level, error) {
	switch GetEnvString("LOG_LEVEL", "info") {
	case "debug":
		return logger.DebugLevel, nil
	case "info":
		return logger.InfoLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL value %q", os.Getenv("LOG_LEVEL"))
	}
}
