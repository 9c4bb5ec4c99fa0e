package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/starwell/coherence/internal/reality"
	"github.com/starwell/coherence/internal/stabilize"
	"github.com/starwell/coherence/internal/synchro"
	"github.com/starwell/coherence/internal/testutil"
)

var storeStart = time.Date(2026, 4, 7, 9, 30, 0, 0, time.UTC)

// createTestStore creates a file-backed store with a frozen clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(testutil.NewManualClock(storeStart)))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestConstruct builds a construct with two connected nodes, one
// anchor, and a connection matrix.
func createTestConstruct(id string) *reality.Construct {
	return &reality.Construct{
		ID:   id,
		Kind: reality.KindQuantum,
		Health: reality.Health{
			Stability:            0.82,
			Coherence:            0.74,
			DimensionalIntegrity: 0.9,
			TemporalStability:    0.66,
			Consistency:          0.58,
		},
		Anchors: []reality.AnchorPoint{
			{ID: id + "-a1", Position: []float64{1, 2}, Stability: 0.7, Influence: 0.4},
		},
		Nodes: []*reality.Node{
			{
				ID:        id + "-n1",
				Kind:      reality.NodePrimary,
				Position:  []float64{0, 0},
				Stability: 0.9,
				Capacity:  120,
				Connections: []reality.Connection{
					{TargetID: id + "-n2", Strength: 0.25, Latency: 30 * time.Millisecond, Reliability: 0.95},
				},
				ActiveAlgorithms: []reality.Algorithm{reality.AlgAdaptiveCompensation},
				LastActivity:     storeStart,
			},
			{
				ID:        id + "-n2",
				Kind:      reality.NodeBackup,
				Position:  []float64{3, 0},
				Stability: 0.55,
				Capacity:  80,
				Connections: []reality.Connection{
					{TargetID: id + "-n1", Strength: 0.25, Latency: 30 * time.Millisecond, Reliability: 0.95},
				},
				LastActivity: storeStart.Add(-2 * time.Minute),
			},
		},
		ConnMatrix:        [][]float64{{1, 0.25}, {0.25, 1}},
		LastStabilization: storeStart.Add(-time.Hour),
	}
}

// createTestResult builds a one-step stabilization result.
func createTestResult(constructID, planID string, final float64, at time.Time) stabilize.Result {
	return stabilize.Result{
		PlanID:               planID,
		ConstructID:          constructID,
		OriginalStability:    0.5,
		FinalStability:       final,
		StabilityImprovement: final - 0.5,
		StepsExecuted:        1,
		StepsSucceeded:       1,
		EnergyConsumed:       40,
		ProcessingTime:       800 * time.Millisecond,
		StepResults: []stabilize.StepResult{
			{
				StepID:             planID + "-s1",
				PatternID:          planID + "-p1",
				Algorithm:          reality.AlgCoherenceReinforcement,
				Success:            true,
				ResultingStability: final,
				EnergyUsed:         40,
			},
		},
		Validation:  stabilize.ValidationReport{Valid: true},
		CompletedAt: at,
	}
}

// createTestOutcome builds a successful outcome for an operation id.
func createTestOutcome(opID string, at time.Time) synchro.OperationOutcome {
	return synchro.OperationOutcome{
		OperationID: opID,
		Kind:        reality.OpStateSync,
		SourceID:    "alpha",
		TargetID:    "beta",
		Priority:    reality.PriorityHigh,
		Success:     true,
		Drift:       0.3,
		EnergyUsed:  8,
		SyncTime:    130 * time.Millisecond,
		PayloadHash: reality.MustPayloadHash(reality.Object{"mode": reality.String("full")}),
		CompletedAt: at,
	}
}

// createTestDrift builds a drift event between alpha and beta.
func createTestDrift(id string, at time.Time) synchro.DriftEvent {
	return synchro.DriftEvent{
		ID:         id,
		ConstructA: "alpha",
		ConstructB: "beta",
		Kind:       "coherence",
		Magnitude:  0.3,
		Direction:  "alpha",
		DetectedAt: at,
	}
}
