package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starwell/coherence/internal/engine"
	"github.com/starwell/coherence/internal/reality"
	"github.com/starwell/coherence/internal/sink"
	"github.com/starwell/coherence/internal/store"
	"github.com/starwell/coherence/internal/synchro"
	"github.com/starwell/coherence/internal/testutil"
)

// newAssertionContext builds a context over a real store and engine:
// one registered construct, two journaled stateSync operations, one
// dataTransfer operation, and one drift event.
func newAssertionContext(t *testing.T) *AssertionContext {
	t.Helper()

	clock := testutil.NewManualClock(scenarioEpoch)
	st, err := store.Open(":memory:", store.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	eng := engine.New(engine.DefaultConfig(), engine.Deps{
		Store:  st,
		Sink:   sink.Nop{},
		Clock:  clock,
		IDs:    testutil.NewSequenceIDs("stb"),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(func() { _ = eng.Close() })

	construct := &reality.Construct{
		ID:   "alpha",
		Kind: reality.KindBaseline,
		Health: reality.Health{
			Stability:            0.9,
			Coherence:            0.8,
			DimensionalIntegrity: 0.9,
			TemporalStability:    0.9,
			Consistency:          0.9,
		},
		Nodes: []*reality.Node{
			{ID: "alpha-n1", Kind: reality.NodePrimary, Stability: 0.9, Capacity: 100, LastActivity: clock.Now()},
		},
	}
	_, err = eng.RegisterReality(construct)
	require.NoError(t, err)

	ctx := context.Background()
	kinds := []reality.OperationKind{reality.OpStateSync, reality.OpStateSync, reality.OpDataTransfer}
	for i, kind := range kinds {
		require.NoError(t, st.RecordOperation(ctx, synchro.OperationOutcome{
			OperationID: fmt.Sprintf("op-%d", i+1),
			Kind:        kind,
			SourceID:    "alpha",
			TargetID:    "beta",
			Priority:    reality.PriorityMedium,
			Success:     true,
			Drift:       0.05,
			EnergyUsed:  5,
			SyncTime:    100 * time.Millisecond,
			CompletedAt: clock.Now(),
		}))
	}
	require.NoError(t, st.RecordDrift(ctx, synchro.DriftEvent{
		ID:         "drift-1",
		ConstructA: "alpha",
		ConstructB: "beta",
		Kind:       "stability",
		Magnitude:  0.15,
		Direction:  "alpha",
		DetectedAt: clock.Now(),
	}))

	return &AssertionContext{
		Ctx:     ctx,
		Store:   st,
		Network: eng,
		Patterns: map[string][]reality.Pattern{
			"alpha": {
				{ID: "pat-1", Kind: reality.PatternCoherenceBreakdown, Severity: 0.2},
				{ID: "pat-2", Kind: reality.PatternTemporalDistortion, Severity: 0.1},
			},
			"gamma": {},
		},
	}
}

func TestEvaluateAssertionsAllPass(t *testing.T) {
	actx := newAssertionContext(t)

	failures := EvaluateAssertions([]Assertion{
		{Type: AssertHealthAbove, Construct: "alpha", Dimension: "stability", Value: 0.85},
		{Type: AssertHealthAbove, Construct: "alpha", Dimension: "mean", Value: 0.85},
		// Kind order must not matter.
		{Type: AssertPatternKinds, Construct: "alpha", Kinds: []string{"temporalDistortion", "coherenceBreakdown"}},
		// An empty kind set asserts nothing was detected.
		{Type: AssertPatternKinds, Construct: "gamma", Kinds: []string{}},
		{Type: AssertOperationCounts, Count: 3},
		{Type: AssertOperationCounts, Kind: "stateSync", Count: 2},
		{Type: AssertDriftCount, Count: 1},
	}, actx)

	assert.Empty(t, failures)
}

func TestEvaluateAssertionsFailures(t *testing.T) {
	actx := newAssertionContext(t)

	tests := []struct {
		name      string
		assertion Assertion
		want      []string
	}{
		{
			"health at bound is not above it",
			Assertion{Type: AssertHealthAbove, Construct: "alpha", Dimension: "coherence", Value: 0.8},
			[]string{"alpha.coherence > 0.8", "alpha.coherence = 0.8"},
		},
		{
			"missing construct",
			Assertion{Type: AssertHealthAbove, Construct: "ghost", Dimension: "stability", Value: 0.5},
			[]string{"construct ghost present"},
		},
		{
			"wrong pattern set",
			Assertion{Type: AssertPatternKinds, Construct: "alpha", Kinds: []string{"realityFracture"}},
			[]string{"alpha patterns [realityFracture]", "[coherenceBreakdown, temporalDistortion]"},
		},
		{
			"never stabilized",
			Assertion{Type: AssertPatternKinds, Construct: "ghost"},
			[]string{"never stabilized"},
		},
		{
			"wrong operation count",
			Assertion{Type: AssertOperationCounts, Kind: "stateSync", Count: 3},
			[]string{"3 stateSync operations", "Actual: 2"},
		},
		{
			"wrong total operation count",
			Assertion{Type: AssertOperationCounts, Count: 5},
			[]string{"5 operations", "Actual: 3"},
		},
		{
			"wrong drift count",
			Assertion{Type: AssertDriftCount, Count: 2},
			[]string{"2 drift events", "Actual: 1"},
		},
		{
			"unknown type",
			Assertion{Type: "health_below"},
			[]string{`unknown assertion type "health_below"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := EvaluateAssertions([]Assertion{tt.assertion}, actx)
			require.Len(t, failures, 1)
			for _, want := range tt.want {
				assert.Contains(t, failures[0], want)
			}
		})
	}
}

func TestEvaluateAssertionsCollectsEveryFailure(t *testing.T) {
	actx := newAssertionContext(t)

	failures := EvaluateAssertions([]Assertion{
		{Type: AssertHealthAbove, Construct: "alpha", Dimension: "coherence", Value: 0.95},
		{Type: AssertDriftCount, Count: 0},
		{Type: AssertOperationCounts, Count: 3}, // passes
	}, actx)

	assert.Len(t, failures, 2)
}

func TestAssertionErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertHealthAbove,
		Expected: "alpha.mean > 0.9",
		Actual:   "alpha.mean = 0.88",
	}
	assert.Equal(t, "Assertion failed: health_above\n  Expected: alpha.mean > 0.9\n  Actual: alpha.mean = 0.88", err.Error())
}
