package harness

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/starwell/coherence/internal/reality"
)

// ReportSnapshot is the timestamp-free projection of a finished
// scenario used for golden comparison. It combines the step trace with
// the coordinator's closing report.
type ReportSnapshot struct {
	Scenario        string           `json:"scenario"`
	State           string           `json:"state"`
	Constructs      []ConstructState `json:"constructs"`
	Trace           []TraceEvent     `json:"trace"`
	Operations      OperationTally   `json:"operations"`
	Matrix          []PairStrength   `json:"matrix,omitempty"`
	Drift           []DriftLine      `json:"drift,omitempty"`
	Recommendations []string         `json:"recommendations,omitempty"`
}

// ConstructState is a construct's final health as the engine holds it.
type ConstructState struct {
	ID     string         `json:"id"`
	Kind   string         `json:"kind"`
	Health reality.Health `json:"health"`
	Mean   float64        `json:"mean"`
}

// OperationTally aggregates journaled operations across the whole run.
type OperationTally struct {
	Total       int            `json:"total"`
	Successful  int            `json:"successful"`
	Failed      int            `json:"failed"`
	ByKind      map[string]int `json:"by_kind,omitempty"`
	TotalEnergy float64        `json:"total_energy"`
}

// PairStrength is one coordination matrix cell keyed by construct pair.
type PairStrength struct {
	A        string  `json:"a"`
	B        string  `json:"b"`
	Strength float64 `json:"strength"`
}

// DriftLine is a drift event without its id and timestamp.
type DriftLine struct {
	ConstructA string  `json:"construct_a"`
	ConstructB string  `json:"construct_b"`
	Kind       string  `json:"kind"`
	Magnitude  float64 `json:"magnitude"`
	Direction  string  `json:"direction,omitempty"`
}

// buildSnapshot assembles the golden projection from the engine's
// final construct states and the coordinator's report.
func buildSnapshot(ctx context.Context, scenario *Scenario, result *Result, w *world) (*ReportSnapshot, error) {
	report, err := w.coord.GenerateReport(ctx, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}

	snap := &ReportSnapshot{
		Scenario: scenario.Name,
		State:    string(report.State),
		Operations: OperationTally{
			Total:       report.Operations.Total,
			Successful:  report.Operations.Successful,
			Failed:      report.Operations.Failed,
			ByKind:      report.Operations.ByKind,
			TotalEnergy: round9(report.Operations.TotalEnergy),
		},
		Recommendations: report.Recommendations,
	}

	for _, spec := range scenario.Constructs {
		c, err := w.eng.Reality(spec.ID)
		if err != nil {
			return nil, err
		}
		h := roundHealth(c.Health)
		snap.Constructs = append(snap.Constructs, ConstructState{
			ID:     c.ID,
			Kind:   string(c.Kind),
			Health: h,
			Mean:   round9(h.Mean()),
		})
	}

	for _, ev := range result.Trace {
		ev.Stability = round9(ev.Stability)
		ev.Drift = round9(ev.Drift)
		snap.Trace = append(snap.Trace, ev)
	}

	ids := report.Matrix.ConstructIDs
	for i, a := range ids {
		for _, b := range ids[i+1:] {
			snap.Matrix = append(snap.Matrix, PairStrength{
				A:        a,
				B:        b,
				Strength: round9(report.Matrix.PairStrength(a, b)),
			})
		}
	}

	for _, d := range report.Drift {
		snap.Drift = append(snap.Drift, DriftLine{
			ConstructA: d.ConstructA,
			ConstructB: d.ConstructB,
			Kind:       d.Kind,
			Magnitude:  round9(d.Magnitude),
			Direction:  d.Direction,
		})
	}

	return snap, nil
}

// round9 rounds to nine decimals. a*b+c expressions may contract to
// FMA on some architectures, so the low bits of health math are not
// portable and cannot appear in golden bytes.
func round9(f float64) float64 {
	return math.Round(f*1e9) / 1e9
}

func roundHealth(h reality.Health) reality.Health {
	return reality.Health{
		Stability:            round9(h.Stability),
		Coherence:            round9(h.Coherence),
		DimensionalIntegrity: round9(h.DimensionalIntegrity),
		TemporalStability:    round9(h.TemporalStability),
		Consistency:          round9(h.Consistency),
	}
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/<name>.golden, where name is the scenario's golden
// field (falling back to its name).
//
// Regenerate golden files with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	name := scenario.Golden
	if name == "" {
		name = scenario.Name
	}
	if err := AssertGolden(t, name, result.Snapshot); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already-built snapshot against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, name string, snapshot *ReportSnapshot) error {
	t.Helper()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
