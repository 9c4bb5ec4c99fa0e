package stabilize

import (
	"context"
	"testing"
	"time"

	"github.com/starwell/coherence/internal/reality"
	"github.com/starwell/coherence/internal/testutil"
	"github.com/starwell/coherence/internal/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newController() *Controller {
	clock := testutil.NewManualClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewController(DefaultConfig(), topology.DefaultConfig(), clock, testutil.NewSequenceIDs("strat"))
}

func adaptable() *reality.Construct {
	return &reality.Construct{
		ID:   "reality-1",
		Kind: reality.KindBaseline,
		Health: reality.Health{
			Stability: 0.8, Coherence: 0.8, DimensionalIntegrity: 0.8,
			TemporalStability: 0.8, Consistency: 0.8,
		},
		Nodes: []*reality.Node{
			{ID: "node-a", Kind: reality.NodePrimary, Position: []float64{0, 0}, Stability: 0.9, Capacity: 100},
			{ID: "node-b", Kind: reality.NodeSecondary, Position: []float64{1, 0}, Stability: 0.3, Capacity: 100},
		},
	}
}

func TestAdaptRejectsEmptyChanges(t *testing.T) {
	_, err := newController().Adapt(context.Background(), adaptable(), nil)

	require.Error(t, err)
	assert.True(t, reality.IsValidationFailed(err))
}

func TestAdaptHighImpactTriggersReconfiguration(t *testing.T) {
	c := adaptable()
	now := time.Unix(1000, 0)
	changes := []reality.Change{
		{ID: "ch-1", Kind: "dimensional_storm", Magnitude: 0.9, Scope: 0.9, DetectedAt: now},
		{ID: "ch-2", Kind: "flux_surge", Magnitude: 0.9, Scope: 0.9, DetectedAt: now},
	}

	res, err := newController().Adapt(context.Background(), c, changes)
	require.NoError(t, err)

	assert.InDelta(t, 0.9, res.Impact, 1e-9)
	assert.InDelta(t, 0.81, res.NetworkImpact, 1e-9)

	require.Len(t, res.Strategies, 2)
	assert.Equal(t, StrategyNetworkReconfiguration, res.Strategies[0].Strategy.Kind,
		"high-priority reconfiguration runs before the standing adjustment")
	assert.Equal(t, StrategyAlgorithmAdjustment, res.Strategies[1].Strategy.Kind)

	// Processing time scales with network impact for reconfiguration and
	// stays flat for the standing adjustment.
	assert.Equal(t, 1620*time.Millisecond, res.Strategies[0].ProcessingTime)
	assert.Equal(t, 200*time.Millisecond, res.Strategies[1].ProcessingTime)

	// Reconfiguration rebuilt the mesh and the matrix.
	assert.NotEmpty(t, c.Nodes[0].Connections)
	require.NotNil(t, c.ConnMatrix)
	assert.NoError(t, reality.ValidateMatrix(c.ConnMatrix))

	// Both strategies succeed, so resilience grades to its ceiling.
	assert.InDelta(t, 0.9, res.NetworkResilience, 1e-9)
	assert.Greater(t, res.AdaptationEffectiveness, 0.0)
}

func TestAdaptLowImpactOnlyAdjusts(t *testing.T) {
	c := adaptable()
	changes := []reality.Change{
		{ID: "ch-1", Kind: "minor_flux", Magnitude: 0.2, Scope: 0.5, DetectedAt: time.Unix(1000, 0)},
	}

	res, err := newController().Adapt(context.Background(), c, changes)
	require.NoError(t, err)

	require.Len(t, res.Strategies, 1)
	outcome := res.Strategies[0]
	assert.Equal(t, StrategyAlgorithmAdjustment, outcome.Strategy.Kind)
	assert.Equal(t, 1, outcome.NodesAdjusted, "only the weak node is re-tuned")
	assert.Contains(t, c.Nodes[1].ActiveAlgorithms, reality.AlgAdaptiveCompensation)
	assert.Nil(t, c.ConnMatrix, "no reconfiguration below the threshold")

	// effectiveness = 0.6 + 0.2 * avg(0.9, 0.3)
	assert.InDelta(t, 0.72, outcome.Effectiveness, 1e-9)
	assert.Equal(t, 200*time.Millisecond, outcome.ProcessingTime)
	assert.True(t, outcome.Success)
	assert.InDelta(t, 0.9, res.NetworkResilience, 1e-9, "single successful strategy grades to the ceiling")
}

func TestAdaptResilienceGradesWithPartialSuccess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinEffectiveness = 0.75 // adjustment (0.72 here) fails, reconfiguration (0.9 - 0.2x0.81) fails too
	clock := testutil.NewManualClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctl := NewController(cfg, topology.DefaultConfig(), clock, testutil.NewSequenceIDs("strat"))

	c := adaptable()
	changes := []reality.Change{
		{ID: "ch-1", Kind: "storm", Magnitude: 0.9, Scope: 0.9, DetectedAt: time.Unix(1000, 0)},
	}

	res, err := ctl.Adapt(context.Background(), c, changes)
	require.NoError(t, err)

	require.Len(t, res.Strategies, 2)
	// reconfiguration: 0.9 - 0.2*0.81 = 0.738 < 0.75 -> failed
	// adjustment: 0.6 + 0.2*0.6 = 0.72 < 0.75 -> failed
	assert.False(t, res.Strategies[0].Success)
	assert.False(t, res.Strategies[1].Success)
	assert.InDelta(t, 0.5, res.NetworkResilience, 1e-9, "total failure grades to the floor, not zero")
}
