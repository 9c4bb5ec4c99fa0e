package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starwell/coherence/internal/reality"
)

func uniformHealth(v float64) HealthSpec {
	return HealthSpec{
		Stability:            v,
		Coherence:            v,
		DimensionalIntegrity: v,
		TemporalStability:    v,
		Consistency:          v,
	}
}

// validScenario returns a minimal scenario that passes validation.
// Tests mutate single fields to probe individual rules.
func validScenario() *Scenario {
	return &Scenario{
		Name:        "minimal",
		Description: "minimal valid scenario",
		Constructs: []ConstructSpec{
			{
				ID:     "alpha",
				Health: uniformHealth(0.9),
				Nodes:  []NodeSpec{{ID: "alpha-n1", Kind: "primary", Stability: 0.9}},
			},
			{
				ID:     "beta",
				Health: uniformHealth(0.8),
				Nodes:  []NodeSpec{{ID: "beta-n1", Stability: 0.8}},
			},
		},
		Flow:       []FlowStep{{Stabilize: "alpha"}},
		Assertions: []Assertion{{Type: AssertDriftCount, Count: 0}},
	}
}

func TestParseScenario(t *testing.T) {
	data := []byte(`
name: parse_check
description: "round-trips the schema"
constructs:
  - id: alpha
    kind: quantum
    health:
      stability: 0.5
      coherence: 0.6
      dimensional_integrity: 0.9
      temporal_stability: 0.9
      consistency: 0.9
    nodes:
      - id: alpha-n1
        kind: primary
        stability: 0.9
        capacity: 120
flow:
  - stabilize: alpha
    expect:
      valid: true
      min_stability: 0.55
assertions:
  - type: health_above
    construct: alpha
    dimension: stability
    value: 0.5
golden: parse_check
`)

	scenario, err := ParseScenario(data)
	require.NoError(t, err)

	assert.Equal(t, "parse_check", scenario.Name)
	require.Len(t, scenario.Constructs, 1)
	assert.Equal(t, "quantum", scenario.Constructs[0].Kind)
	assert.Equal(t, 0.6, scenario.Constructs[0].Health.Coherence)
	require.Len(t, scenario.Constructs[0].Nodes, 1)
	assert.Equal(t, 120.0, scenario.Constructs[0].Nodes[0].Capacity)

	require.Len(t, scenario.Flow, 1)
	require.NotNil(t, scenario.Flow[0].Expect)
	require.NotNil(t, scenario.Flow[0].Expect.Valid)
	assert.True(t, *scenario.Flow[0].Expect.Valid)
	require.NotNil(t, scenario.Flow[0].Expect.MinStability)
	assert.Equal(t, 0.55, *scenario.Flow[0].Expect.MinStability)

	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertHealthAbove, scenario.Assertions[0].Type)
	assert.Equal(t, "parse_check", scenario.Golden)
}

// A typo like "assertion:" must be rejected rather than silently
// leaving the scenario without assertions.
func TestParseScenarioRejectsUnknownFields(t *testing.T) {
	data := []byte(`
name: typo
description: "assertion instead of assertions"
constructs:
  - id: alpha
    health:
      stability: 0.9
      coherence: 0.9
      dimensional_integrity: 0.9
      temporal_stability: 0.9
      consistency: 0.9
    nodes:
      - id: n1
        stability: 0.9
flow:
  - stabilize: alpha
assertion:
  - type: drift_count
    count: 0
`)

	_, err := ParseScenario(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in type")
}

func TestValidateScenario(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr string
	}{
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"missing description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"no constructs", func(s *Scenario) { s.Constructs = nil }, "constructs list is required"},
		{"no flow", func(s *Scenario) { s.Flow = nil }, "flow list is required"},
		{"no assertions or golden", func(s *Scenario) { s.Assertions = nil }, "assertions or a golden snapshot"},
		{"blank construct id", func(s *Scenario) { s.Constructs[0].ID = "" }, "constructs[0]: id is required"},
		{"duplicate construct id", func(s *Scenario) { s.Constructs[1].ID = "alpha" }, `duplicate construct id "alpha"`},
		{"no nodes", func(s *Scenario) { s.Constructs[0].Nodes = nil }, "nodes list is required"},
		{"blank node id", func(s *Scenario) { s.Constructs[0].Nodes[0].ID = "" }, "nodes[0]: id is required"},
		{"stabilize unknown construct", func(s *Scenario) { s.Flow[0].Stabilize = "ghost" }, `unknown construct "ghost"`},
		{"two verbs", func(s *Scenario) { s.Flow[0].Coordinate = true }, "exactly one of"},
		{"empty step", func(s *Scenario) { s.Flow[0] = FlowStep{} }, "exactly one of"},
		{"synchronize missing endpoint", func(s *Scenario) {
			s.Flow[0] = FlowStep{Synchronize: &SyncStep{Source: "alpha"}}
		}, "synchronize requires source and target"},
		{"synchronize unknown construct", func(s *Scenario) {
			s.Flow[0] = FlowStep{Synchronize: &SyncStep{Source: "alpha", Target: "ghost"}}
		}, `unknown construct "ghost"`},
		{"synchronize unknown kind", func(s *Scenario) {
			s.Flow[0] = FlowStep{Synchronize: &SyncStep{Source: "alpha", Target: "beta", Kind: "teleport"}}
		}, `unknown operation kind "teleport"`},
		{"health_above unknown construct", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertHealthAbove, Construct: "ghost", Dimension: "mean"}}
		}, `unknown construct "ghost"`},
		{"health_above unknown dimension", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertHealthAbove, Construct: "alpha", Dimension: "vibes"}}
		}, `unknown health dimension "vibes"`},
		{"pattern_kinds missing construct", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertPatternKinds}}
		}, "construct is required for pattern_kinds"},
		{"operation_counts negative count", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertOperationCounts, Count: -1}}
		}, "count must be non-negative"},
		{"operation_counts unknown kind", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertOperationCounts, Kind: "teleport", Count: 1}}
		}, `unknown operation kind "teleport"`},
		{"unknown assertion type", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: "health_below"}}
		}, `unknown assertion type "health_below"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validScenario()
			tt.mutate(s)
			err := validateScenario(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// Golden-only scenarios are valid: an empty kinds list is an assertion
// about the absence of patterns, not a missing field.
func TestValidateScenarioAcceptsGoldenOnly(t *testing.T) {
	s := validScenario()
	s.Assertions = nil
	s.Golden = "minimal"
	require.NoError(t, validateScenario(s))

	s = validScenario()
	s.Assertions = []Assertion{{Type: AssertPatternKinds, Construct: "alpha", Kinds: []string{}}}
	require.NoError(t, validateScenario(s))
}

func TestLoadScenario(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "steady_network.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "steady_network", scenario.Name)
	assert.Len(t, scenario.Constructs, 2)
	assert.Len(t, scenario.Flow, 3)
	assert.Len(t, scenario.Assertions, 5)
	assert.Equal(t, "steady_network", scenario.Golden)
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenarioMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: [unclosed"), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestConstructSpecDefaults(t *testing.T) {
	spec := ConstructSpec{
		ID:     "alpha",
		Health: uniformHealth(0.9),
		Anchors: []AnchorSpec{
			{ID: "a1", Position: []float64{0, 1}, Stability: 0.8, Influence: 2},
		},
		Nodes: []NodeSpec{
			{ID: "n1", Stability: 0.9},
			{ID: "n2", Kind: "primary", Stability: 0.8, Capacity: 250, Position: []float64{1, 2}},
		},
	}

	c := spec.toConstruct()

	assert.Equal(t, reality.KindBaseline, c.Kind)
	assert.Equal(t, 0.9, c.Health.Stability)

	require.Len(t, c.Anchors, 1)
	assert.Equal(t, "a1", c.Anchors[0].ID)
	assert.Equal(t, 2.0, c.Anchors[0].Influence)

	require.Len(t, c.Nodes, 2)
	assert.Equal(t, reality.NodeSecondary, c.Nodes[0].Kind)
	assert.Equal(t, 100.0, c.Nodes[0].Capacity)
	assert.Equal(t, reality.NodePrimary, c.Nodes[1].Kind)
	assert.Equal(t, 250.0, c.Nodes[1].Capacity)
	assert.Equal(t, []float64{1, 2}, c.Nodes[1].Position)
}
