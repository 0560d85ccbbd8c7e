package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlabs/batchsend/pkg/logger"
)

func testConfig() Config {
	return Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      50 * time.Millisecond,
		LatencyCeiling:   time.Second,
		MonitoringPeriod: time.Minute,
	}
}

func healthyPing(_ context.Context) (time.Duration, error) {
	return 5 * time.Millisecond, nil
}

func failingPing(_ context.Context) (time.Duration, error) {
	return 0, errors.New("connection refused")
}

func newTestBreaker(t *testing.T) *Breaker {
	t.Helper()
	return New(testConfig(), &logger.EmptyLogger{})
}

func TestBreakerStaysClosedOnHealthyChecks(t *testing.T) {
	b := newTestBreaker(t)
	for i := 0; i < 10; i++ {
		res, err := b.Check(context.Background(), healthyPing)
		require.NoError(t, err)
		assert.True(t, res.Healthy)
	}
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerTripsAfterFailureThreshold(t *testing.T) {
	b := newTestBreaker(t)

	for i := 0; i < 2; i++ {
		_, err := b.Check(context.Background(), failingPing)
		require.NoError(t, err)
		assert.Equal(t, StateClosed, b.State(), "check %d should not trip", i+1)
	}

	_, err := b.Check(context.Background(), failingPing)
	require.NoError(t, err)
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerHealthyCheckResetsFailureRun(t *testing.T) {
	b := newTestBreaker(t)

	b.Check(context.Background(), failingPing)
	b.Check(context.Background(), failingPing)
	b.Check(context.Background(), healthyPing)
	b.Check(context.Background(), failingPing)
	b.Check(context.Background(), failingPing)

	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerFastFailsWhileOpen(t *testing.T) {
	b := newTestBreaker(t)
	tripBreaker(t, b)

	pinged := false
	_, err := b.Check(context.Background(), func(_ context.Context) (time.Duration, error) {
		pinged = true
		return 0, nil
	})
	require.Error(t, err)
	var open *ErrOpen
	assert.ErrorAs(t, err, &open)
	assert.False(t, pinged)
}

func TestBreakerHalfOpensAfterTimeout(t *testing.T) {
	b := newTestBreaker(t)
	tripBreaker(t, b)

	time.Sleep(testConfig().OpenTimeout + 10*time.Millisecond)
	assert.True(t, b.Allow())

	res, err := b.Check(context.Background(), healthyPing)
	require.NoError(t, err)
	assert.True(t, res.Healthy)
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreakerClosesAfterSuccessThreshold(t *testing.T) {
	b := newTestBreaker(t)
	tripBreaker(t, b)
	time.Sleep(testConfig().OpenTimeout + 10*time.Millisecond)

	b.Check(context.Background(), healthyPing)
	assert.Equal(t, StateHalfOpen, b.State())

	b.Check(context.Background(), healthyPing)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	b := newTestBreaker(t)
	tripBreaker(t, b)
	time.Sleep(testConfig().OpenTimeout + 10*time.Millisecond)

	b.Check(context.Background(), healthyPing)
	require.Equal(t, StateHalfOpen, b.State())

	b.Check(context.Background(), failingPing)
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerSlowPingIsUnhealthy(t *testing.T) {
	b := newTestBreaker(t)

	res, err := b.Check(context.Background(), func(_ context.Context) (time.Duration, error) {
		return 2 * time.Second, nil
	})
	require.NoError(t, err)
	assert.False(t, res.Healthy)
	assert.Equal(t, "latency above ceiling", res.Error)
}

func TestBreakerReset(t *testing.T) {
	b := newTestBreaker(t)
	tripBreaker(t, b)

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())

	// Counters are cleared: it takes a full run of failures to trip again.
	b.Check(context.Background(), failingPing)
	b.Check(context.Background(), failingPing)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerWindowMetrics(t *testing.T) {
	b := newTestBreaker(t)

	b.Check(context.Background(), healthyPing)
	b.Check(context.Background(), healthyPing)
	b.Check(context.Background(), failingPing)

	m := b.Metrics()
	assert.Equal(t, 3, m.Checks)
	assert.InDelta(t, 2.0/3.0, m.HealthyRate, 0.001)
	assert.False(t, m.LastFailure.IsZero())
}

func TestBreakerDefaultsApplied(t *testing.T) {
	b := New(Config{}, &logger.EmptyLogger{})
	assert.Equal(t, DefaultConfig(), b.cfg)
}

func tripBreaker(t *testing.T, b *Breaker) {
	t.Helper()
	for i := 0; i < testConfig().FailureThreshold; i++ {
		_, err := b.Check(context.Background(), failingPing)
		require.NoError(t, err)
	}
	require.Equal(t, StateOpen, b.State())
}
