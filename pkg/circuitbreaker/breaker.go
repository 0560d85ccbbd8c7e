// Package circuitbreaker implements the connection health monitor: a
// CLOSED/OPEN/HALF_OPEN circuit breaker fed by cheap read-only health
// checks against the network client.
package circuitbreaker

import (
	"context"
	"sync"
	"time"

	"github.com/driftlabs/batchsend/pkg/logger"
	"github.com/driftlabs/batchsend/pkg/metrics"
)

// State is the breaker's gating state.
type State int

const (
	// StateClosed allows all health checks through.
	StateClosed State = iota
	// StateOpen fast-fails new checks without touching the network.
	StateOpen
	// StateHalfOpen lets probes through while recovery is unconfirmed.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrOpen is returned when the breaker rejects an attempt outright.
type ErrOpen struct {
	Since time.Time
}

func (e *ErrOpen) Error() string {
	return "circuit breaker open since " + e.Since.Format(time.RFC3339)
}

// HealthCheckResult is one recorded health-check outcome.
type HealthCheckResult struct {
	Healthy      bool
	ResponseTime time.Duration
	Timestamp    time.Time
	Error        string
}

// Config tunes the breaker.
type Config struct {
	// FailureThreshold is the run of consecutive failed checks that
	// trips the breaker from CLOSED to OPEN.
	FailureThreshold int
	// SuccessThreshold is the run of consecutive successful checks
	// that closes the breaker from HALF_OPEN.
	SuccessThreshold int
	// OpenTimeout is how long the breaker stays OPEN before allowing
	// a probe through.
	OpenTimeout time.Duration
	// LatencyCeiling is the slowest round-trip still counted healthy.
	LatencyCeiling time.Duration
	// MonitoringPeriod bounds the sliding window of retained results.
	// The window feeds metrics only, never the state machine.
	MonitoringPeriod time.Duration
}

// DefaultConfig returns the standard breaker tuning.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		OpenTimeout:      60 * time.Second,
		LatencyCeiling:   10 * time.Second,
		MonitoringPeriod: 5 * time.Minute,
	}
}

// maxWindowSize caps the retained result window regardless of period.
const maxWindowSize = 256

// Breaker is the shared connection health monitor. It outlives any
// single engine invocation so network health is remembered across
// runs, and it is safe for concurrent use; state transitions are
// serialized behind the mutex.
type Breaker struct {
	cfg    Config
	logger logger.Logger

	mu                   sync.Mutex
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	lastFailure          time.Time
	window               []HealthCheckResult
}

// New creates a breaker. Construct one per process and inject it;
// tests get isolated breakers the same way.
func New(cfg Config, log logger.Logger) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultConfig().SuccessThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultConfig().OpenTimeout
	}
	if cfg.LatencyCeiling <= 0 {
		cfg.LatencyCeiling = DefaultConfig().LatencyCeiling
	}
	if cfg.MonitoringPeriod <= 0 {
		cfg.MonitoringPeriod = DefaultConfig().MonitoringPeriod
	}
	return &Breaker{cfg: cfg, logger: log, state: StateClosed}
}

// Check runs one health check through the breaker. While OPEN and
// before the timeout it fast-fails without calling ping; after the
// timeout it transitions to HALF_OPEN and lets the probe through.
// The check is healthy iff ping succeeds under the latency ceiling.
func (b *Breaker) Check(ctx context.Context, ping func(ctx context.Context) (time.Duration, error)) (HealthCheckResult, error) {
	if err := b.admit(); err != nil {
		return HealthCheckResult{}, err
	}

	start := time.Now()
	latency, err := ping(ctx)
	if err != nil {
		latency = time.Since(start)
	}

	result := HealthCheckResult{
		Healthy:      err == nil && latency <= b.cfg.LatencyCeiling,
		ResponseTime: latency,
		Timestamp:    time.Now(),
	}
	if err != nil {
		result.Error = err.Error()
	} else if !result.Healthy {
		result.Error = "latency above ceiling"
	}

	b.record(result)
	return result, nil
}

// admit decides whether a new check may proceed, handling the
// OPEN -> HALF_OPEN transition so concurrent callers cannot both
// half-open the breaker.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	if time.Since(b.lastFailure) < b.cfg.OpenTimeout {
		return &ErrOpen{Since: b.lastFailure}
	}

	b.transition(StateHalfOpen)
	b.consecutiveSuccesses = 0
	return nil
}

// record applies one result to the state machine and the window.
func (b *Breaker) record(result HealthCheckResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.window = append(b.window, result)
	b.prune(result.Timestamp)

	metrics.HealthCheckLatency.Observe(result.ResponseTime.Seconds())

	if result.Healthy {
		b.consecutiveFailures = 0
		if b.state == StateHalfOpen {
			b.consecutiveSuccesses++
			if b.consecutiveSuccesses >= b.cfg.SuccessThreshold {
				b.transition(StateClosed)
				b.consecutiveSuccesses = 0
			}
		}
		return
	}

	b.consecutiveSuccesses = 0
	b.consecutiveFailures++
	b.lastFailure = result.Timestamp

	switch b.state {
	case StateHalfOpen:
		// A single failure while probing reopens immediately.
		b.transition(StateOpen)
	case StateClosed:
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	}
}

// transition must be called with the mutex held.
func (b *Breaker) transition(next State) {
	if b.state == next {
		return
	}
	b.logger.NoticeWith(logger.Health, "circuit breaker %s -> %s", b.state, next)
	b.state = next
	metrics.CircuitBreakerState.Set(float64(next))
}

// prune drops results outside the monitoring period.
func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.cfg.MonitoringPeriod)
	idx := 0
	for idx < len(b.window) && b.window[idx].Timestamp.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		b.window = append(b.window[:0], b.window[idx:]...)
	}
	if len(b.window) > maxWindowSize {
		b.window = append(b.window[:0], b.window[len(b.window)-maxWindowSize:]...)
	}
}

// State returns the current gating state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether new network attempts should proceed. OPEN past
// its timeout counts as allowed, since the next check may probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateOpen {
		return true
	}
	return time.Since(b.lastFailure) >= b.cfg.OpenTimeout
}

// Reset forces the breaker back to CLOSED and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
}

// WindowMetrics summarizes the retained health-check window.
type WindowMetrics struct {
	Checks         int
	HealthyRate    float64
	AverageLatency time.Duration
	LastFailure    time.Time
}

// Metrics returns observability numbers from the sliding window.
func (b *Breaker) Metrics() WindowMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := WindowMetrics{Checks: len(b.window), LastFailure: b.lastFailure}
	if len(b.window) == 0 {
		return m
	}

	healthy := 0
	var total time.Duration
	for _, r := range b.window {
		if r.Healthy {
			healthy++
		}
		total += r.ResponseTime
	}
	m.HealthyRate = float64(healthy) / float64(len(b.window))
	m.AverageLatency = total / time.Duration(len(b.window))
	return m
}
