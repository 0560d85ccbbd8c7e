package batch

import (
	"context"
	"time"

	"github.com/driftlabs/batchsend/pkg/circuitbreaker"
	"github.com/driftlabs/batchsend/pkg/errclass"
	"github.com/driftlabs/batchsend/pkg/ledger"
	"github.com/driftlabs/batchsend/pkg/logger"
)

// StabilityReport summarizes a preflight probe of the network.
type StabilityReport struct {
	Samples        int
	HealthyRate    float64
	AverageLatency time.Duration
}

// minHealthyRate is the fraction of probe samples that must come back
// healthy for the run to start.
const minHealthyRate = 0.8

// samplePause spaces probe round-trips so the probe itself does not
// trip the network's rate limits.
const samplePause = 200 * time.Millisecond

// ProbeStability samples round-trips through the breaker and gates the
// run on the observed health. Used for the preflight validation and
// network-stability-check options before any batch is submitted.
func ProbeStability(ctx context.Context, breaker *circuitbreaker.Breaker, client ledger.NetworkClient, samples int, log logger.Logger) (StabilityReport, error) {
	if samples < 1 {
		samples = 1
	}

	report := StabilityReport{Samples: samples}
	healthy := 0
	var totalLatency time.Duration

	for i := 0; i < samples; i++ {
		result, err := breaker.Check(ctx, client.Ping)
		if err != nil {
			// Breaker rejected the probe outright.
			return report, errclass.New(errclass.KindNetworkError, err)
		}
		if result.Healthy {
			healthy++
		}
		totalLatency += result.ResponseTime

		if i < samples-1 {
			if err := sleepCtx(ctx, samplePause); err != nil {
				return report, err
			}
		}
	}

	report.HealthyRate = float64(healthy) / float64(samples)
	report.AverageLatency = totalLatency / time.Duration(samples)

	log.InfoWith(logger.Health, "stability probe: %d samples, %.0f%% healthy, avg latency %v",
		samples, report.HealthyRate*100, report.AverageLatency.Round(time.Millisecond))

	if report.HealthyRate < minHealthyRate {
		return report, errclass.Newf(errclass.KindNetworkError,
			"network unstable: %.0f%% of %d probes healthy", report.HealthyRate*100, samples)
	}
	return report, nil
}
