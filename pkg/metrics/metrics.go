package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	BatchesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "batchsend_batches_completed_total",
		Help: "The total number of batches confirmed on the ledger",
	})

	BatchesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "batchsend_batches_failed_total",
		Help: "The total number of batches that exhausted their retries",
	})

	RecipientsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "batchsend_recipients_processed_total",
		Help: "The total number of recipients paid out",
	})

	RecipientsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "batchsend_recipients_failed_total",
		Help: "The total number of recipients in failed batches",
	})

	BatchProcessingTime = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "batchsend_batch_processing_seconds",
		Help:    "Time taken to process one batch through submit and confirm",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10), // Start at 1s with 10 buckets doubling in size
	})

	BatchRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "batchsend_batch_retries_total",
		Help: "The total number of per-batch retry attempts by error kind",
	}, []string{"error_kind"})

	MaxRetriesReached = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "batchsend_max_retries_reached_total",
		Help: "Number of batches that reached maximum retry attempts",
	}, []string{"error_kind"})

	ClassifiedErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "batchsend_errors_total",
		Help: "Total number of classified errors by kind and category",
	}, []string{"error_kind", "category"})

	OperationsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "batchsend_operations_total",
		Help: "The total number of ledger operations by type and status",
	}, []string{"operation", "status"})

	EstimatedFee = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "batchsend_estimated_fee_units",
		Help: "Most recent per-batch fee estimate in smallest units",
	})

	CircuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "batchsend_circuit_breaker_state",
		Help: "Connection health monitor state (0=closed, 1=open, 2=half-open)",
	})

	HealthCheckLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "batchsend_health_check_seconds",
		Help:    "Round-trip latency of ledger health checks",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	ProgressRecipients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "batchsend_progress_recipients",
		Help: "Recipients processed so far in the current run",
	})
)
