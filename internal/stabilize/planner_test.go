package stabilize

import (
	"testing"
	"time"

	"github.com/starwell/coherence/internal/reality"
	"github.com/starwell/coherence/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlanner() *Planner {
	clock := testutil.NewManualClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewPlanner(DefaultConfig(), clock, testutil.NewSequenceIDs("plan"))
}

func TestBuildPlanOrdersBySeverity(t *testing.T) {
	at := time.Unix(1000, 0)
	patterns := []reality.Pattern{
		{ID: "p-low", Kind: reality.PatternTemporalDistortion, Severity: 0.4, DetectedAt: at},
		{ID: "p-high", Kind: reality.PatternCoherenceBreakdown, Severity: 0.9, DetectedAt: at},
	}

	plan := newPlanner().BuildPlan("reality-1", patterns)

	require.Len(t, plan.Steps, 2)
	first, second := plan.Steps[0], plan.Steps[1]

	assert.Equal(t, "p-high", first.PatternID, "worst pattern is remediated first")
	assert.Equal(t, reality.AlgCoherenceReinforcement, first.Algorithm)
	assert.Equal(t, 9, first.Priority)
	assert.Equal(t, reality.AlgTemporalSynchronization, second.Algorithm)
	assert.Equal(t, 4, second.Priority)
}

func TestBuildPlanTieBreaks(t *testing.T) {
	early := time.Unix(1000, 0)
	late := time.Unix(2000, 0)
	patterns := []reality.Pattern{
		{ID: "p-b", Kind: reality.PatternQuantumDecoherence, Severity: 0.5, DetectedAt: early},
		{ID: "p-c", Kind: reality.PatternDimensionalShift, Severity: 0.5, DetectedAt: late},
		{ID: "p-a", Kind: reality.PatternCoherenceBreakdown, Severity: 0.5, DetectedAt: early},
	}

	plan := newPlanner().BuildPlan("reality-1", patterns)

	require.Len(t, plan.Steps, 3)
	// Equal priority: earlier detection wins, then ascending pattern id.
	assert.Equal(t, "p-a", plan.Steps[0].PatternID)
	assert.Equal(t, "p-b", plan.Steps[1].PatternID)
	assert.Equal(t, "p-c", plan.Steps[2].PatternID)
}

func TestBuildPlanEstimates(t *testing.T) {
	at := time.Unix(1000, 0)
	patterns := []reality.Pattern{
		{ID: "p1", Kind: reality.PatternCoherenceBreakdown, Severity: 0.3, DetectedAt: at,
			AffectedNodes: []string{"node-a", "node-b"}},
	}

	plan := newPlanner().BuildPlan("reality-1", patterns)

	require.Len(t, plan.Steps, 1)
	step := plan.Steps[0]
	assert.InDelta(t, 30.0, step.EstimatedEnergy, 1e-9, "severity x energy scale")
	assert.Equal(t, 600*time.Millisecond, step.EstimatedTime, "severity x time scale")
	assert.InDelta(t, 30.0, plan.TotalEnergy, 1e-9)
	assert.Equal(t, 600*time.Millisecond, plan.EstimatedDuration)

	assert.Equal(t, reality.RiskLow, plan.Risk.Level)
	assert.InDelta(t, 0.06, plan.Risk.FailureProbability, 1e-9, "0.05 floor + 2 affected nodes x 0.005")
	assert.InDelta(t, 0.94, plan.SuccessProbability, 1e-9)
	assert.NotEmpty(t, plan.Risk.Mitigations)
}

func TestBuildPlanEmptyPatterns(t *testing.T) {
	plan := newPlanner().BuildPlan("reality-1", nil)

	assert.True(t, plan.Empty())
	assert.Equal(t, reality.RiskLow, plan.Risk.Level)
	assert.Zero(t, plan.TotalEnergy)
}

func TestAssessRiskLevelFromWorstSeverity(t *testing.T) {
	at := time.Unix(1000, 0)
	patterns := []reality.Pattern{
		{ID: "p1", Severity: 0.9, DetectedAt: at, AffectedNodes: []string{"a"}},
		{ID: "p2", Severity: 0.2, DetectedAt: at, AffectedNodes: []string{"a", "b"}},
	}

	risk := assessRisk(patterns)

	assert.Equal(t, reality.RiskCritical, risk.Level)
	assert.InDelta(t, 0.36, risk.FailureProbability, 1e-9, "0.35 floor + 2 distinct nodes x 0.005")
	assert.Contains(t, risk.Mitigations, "prepare emergency anchor protocol")
}

func TestAlgorithmLookup(t *testing.T) {
	tests := []struct {
		kind reality.PatternKind
		want reality.Algorithm
	}{
		{reality.PatternCoherenceBreakdown, reality.AlgCoherenceReinforcement},
		{reality.PatternDimensionalShift, reality.AlgDimensionalAnchoring},
		{reality.PatternTemporalDistortion, reality.AlgTemporalSynchronization},
		{reality.PatternQuantumDecoherence, reality.AlgQuantumStabilization},
		{reality.PatternRealityFracture, reality.AlgAdaptiveCompensation},
		{reality.PatternAnchorFailure, reality.AlgAdaptiveCompensation},
		{reality.PatternKind("unknown"), reality.AlgAdaptiveCompensation},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, algorithmForPattern(tt.kind), "kind %s", tt.kind)
	}
}
