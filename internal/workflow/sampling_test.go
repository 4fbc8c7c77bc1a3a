package workflow

import (
	"context"
	"io"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/surveyops/review-api/internal/models"
)

func TestUniformSamplerRange(t *testing.T) {
	sampler := NewUniformSampler()
	for i := 0; i < 1000; i++ {
		draw := sampler.Draw()
		require.GreaterOrEqual(t, draw, 0.0)
		require.Less(t, draw, 100.0)
	}
}

func TestUniformSamplerIndependentDraws(t *testing.T) {
	sampler := NewUniformSampler()
	seen := make(map[float64]int)
	for i := 0; i < 100; i++ {
		seen[sampler.Draw()]++
	}
	// A fixed or shared seed would collapse successive draws onto a handful
	// of values; independent re-seeding keeps them distinct.
	require.Greater(t, len(seen), 90)
}

// The sampling gate is the one transition whose destination is not a pure
// function of state and action, so its split can only be asserted
// statistically. With p=30 over N draws the finalize share must land within
// five standard deviations of 0.30.
func TestSamplingDistribution(t *testing.T) {
	const (
		n = 100000
		p = 0.30
	)

	sampler := NewUniformSampler()
	finalized := 0
	for i := 0; i < n; i++ {
		if sampler.Draw() < p*100 {
			finalized++
		}
	}

	share := float64(finalized) / float64(n)
	sigma := math.Sqrt(p * (1 - p) / n)
	require.InDelta(t, p, share, 5*sigma,
		"finalize share %.4f outside statistical bounds", share)
}

// Drives the full gate repeatedly to confirm both destinations occur and
// each run leaves the documented pair of audit entries.
func TestSamplingGateOutcomesAudited(t *testing.T) {
	ctx := context.Background()
	outcomes := map[State]int{}

	for i := 0; i < 500; i++ {
		store := newFakeRecordStore(testRecord("r1", StatePendingSupervisor))
		engine, err := NewEngine(store, testOracle(), nil, Config{SamplingPercentage: 50}, zerolog.New(io.Discard))
		require.NoError(t, err)

		require.NoError(t, engine.ApplySamplingGate(ctx, "r1", supervisorID, ""))

		status := State(store.records["r1"].Status)
		outcomes[status]++

		trail := store.trail["r1"]
		require.Len(t, trail, 2)
		require.Equal(t, models.AuditActionSampling, trail[0].Action)
		require.Equal(t, string(status), trail[0].NewValue)
		require.Equal(t, models.AuditActionStatusChange, trail[1].Action)
	}

	require.Positive(t, outcomes[StateFinalizedBySampling])
	require.Positive(t, outcomes[StatePendingExaminer])
}
