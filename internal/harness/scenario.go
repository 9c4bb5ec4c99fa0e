package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/starwell/coherence/internal/reality"
)

// Scenario defines a conformance test scenario.
// Scenarios build a reality network inline, execute a flow of
// stabilization and synchronization steps, and assert on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Constructs declares the network the scenario runs against.
	Constructs []ConstructSpec `yaml:"constructs"`

	// Flow contains the steps to execute in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final network and journal.
	// Supported types: health_above, pattern_kinds, operation_counts,
	// drift_count.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Golden names a report snapshot to compare under testdata/golden.
	// Empty means no golden comparison.
	Golden string `yaml:"golden,omitempty"`
}

// ConstructSpec declares one construct inline.
type ConstructSpec struct {
	ID      string       `yaml:"id"`
	Kind    string       `yaml:"kind,omitempty"`
	Health  HealthSpec   `yaml:"health"`
	Anchors []AnchorSpec `yaml:"anchors,omitempty"`
	Nodes   []NodeSpec   `yaml:"nodes"`
}

// HealthSpec mirrors the five bounded health scores.
type HealthSpec struct {
	Stability            float64 `yaml:"stability"`
	Coherence            float64 `yaml:"coherence"`
	DimensionalIntegrity float64 `yaml:"dimensional_integrity"`
	TemporalStability    float64 `yaml:"temporal_stability"`
	Consistency          float64 `yaml:"consistency"`
}

// AnchorSpec declares an anchor point.
type AnchorSpec struct {
	ID        string    `yaml:"id"`
	Position  []float64 `yaml:"position,omitempty"`
	Stability float64   `yaml:"stability"`
	Influence float64   `yaml:"influence"`
}

// NodeSpec declares a stabilization node. Kind defaults to secondary
// and capacity to 100, so the shorthand {id, stability} is a valid node.
type NodeSpec struct {
	ID        string    `yaml:"id"`
	Kind      string    `yaml:"kind,omitempty"`
	Position  []float64 `yaml:"position,omitempty"`
	Stability float64   `yaml:"stability"`
	Capacity  float64   `yaml:"capacity,omitempty"`
}

// FlowStep executes one operation. Exactly one of Stabilize,
// Synchronize, or Coordinate must be set.
type FlowStep struct {
	// Stabilize runs the analyze/plan/execute pipeline against the
	// named construct.
	Stabilize string `yaml:"stabilize,omitempty"`

	// Synchronize executes a single pairwise operation.
	Synchronize *SyncStep `yaml:"synchronize,omitempty"`

	// Coordinate runs a full synchronization round across every
	// construct in the scenario.
	Coordinate bool `yaml:"coordinate,omitempty"`

	// Expect validates the step outcome. If nil, the step only has to
	// complete without an unexpected error.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// SyncStep names the endpoints of a pairwise operation.
type SyncStep struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`

	// Kind selects the operation kind; defaults to stateSync.
	Kind string `yaml:"kind,omitempty"`
}

// ExpectClause specifies the expected step outcome. Nil fields are not
// validated.
type ExpectClause struct {
	// Valid is the expected stabilization validation verdict.
	Valid *bool `yaml:"valid,omitempty"`

	// Success is the expected outcome of a pairwise operation.
	Success *bool `yaml:"success,omitempty"`

	// MinStability is the lowest acceptable final stability after a
	// stabilize step.
	MinStability *float64 `yaml:"min_stability,omitempty"`

	// Steps is the expected number of executed plan steps.
	Steps *int `yaml:"steps,omitempty"`

	// Synchronized is the expected construct participation count of a
	// coordinate step.
	Synchronized *int `yaml:"synchronized,omitempty"`

	// Error is the expected error code (e.g. STABILITY_CRITICAL).
	// When set, the step must fail with exactly this code.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the final network and journal.
type Assertion struct {
	// Type specifies the assertion type:
	// - "health_above": a health dimension exceeds a bound
	// - "pattern_kinds": the last stabilize detected exactly these kinds
	// - "operation_counts": journaled operation count, optionally by kind
	// - "drift_count": journaled drift event count
	Type string `yaml:"type"`

	// Construct is the construct id (health_above, pattern_kinds).
	Construct string `yaml:"construct,omitempty"`

	// Dimension is the health dimension name (health_above): one of
	// stability, coherence, dimensional_integrity, temporal_stability,
	// consistency, or mean.
	Dimension string `yaml:"dimension,omitempty"`

	// Value is the exclusive lower bound (health_above).
	Value float64 `yaml:"value,omitempty"`

	// Kinds is the expected pattern kind set (pattern_kinds).
	Kinds []string `yaml:"kinds,omitempty"`

	// Kind filters operations by kind (operation_counts). Empty counts
	// every operation.
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number of occurrences (operation_counts,
	// drift_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertHealthAbove     = "health_above"
	AssertPatternKinds    = "pattern_kinds"
	AssertOperationCounts = "operation_counts"
	AssertDriftCount      = "drift_count"
)

// health dimension names accepted by health_above.
var healthDimensions = map[string]bool{
	"stability":             true,
	"coherence":             true,
	"dimensional_integrity": true,
	"temporal_stability":    true,
	"consistency":           true,
	"mean":                  true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation
// (catches typos like "assertion:" vs "assertions:").
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Constructs) == 0 {
		return fmt.Errorf("constructs list is required and must be non-empty")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 && s.Golden == "" {
		return fmt.Errorf("scenario must have assertions or a golden snapshot")
	}

	ids := make(map[string]bool, len(s.Constructs))
	for i, c := range s.Constructs {
		if c.ID == "" {
			return fmt.Errorf("constructs[%d]: id is required", i)
		}
		if ids[c.ID] {
			return fmt.Errorf("constructs[%d]: duplicate construct id %q", i, c.ID)
		}
		ids[c.ID] = true
		if len(c.Nodes) == 0 {
			return fmt.Errorf("constructs[%d]: nodes list is required and must be non-empty", i)
		}
		for j, n := range c.Nodes {
			if n.ID == "" {
				return fmt.Errorf("constructs[%d].nodes[%d]: id is required", i, j)
			}
		}
	}

	for i, step := range s.Flow {
		if err := validateFlowStep(i, &step, ids); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, ids); err != nil {
			return err
		}
	}

	return nil
}

// validateFlowStep checks that exactly one verb is set and that it
// references declared constructs.
func validateFlowStep(index int, step *FlowStep, ids map[string]bool) error {
	verbs := 0
	if step.Stabilize != "" {
		verbs++
		if !ids[step.Stabilize] {
			return fmt.Errorf("flow[%d]: stabilize references unknown construct %q", index, step.Stabilize)
		}
	}
	if step.Synchronize != nil {
		verbs++
		if step.Synchronize.Source == "" || step.Synchronize.Target == "" {
			return fmt.Errorf("flow[%d]: synchronize requires source and target", index)
		}
		if !ids[step.Synchronize.Source] {
			return fmt.Errorf("flow[%d]: synchronize references unknown construct %q", index, step.Synchronize.Source)
		}
		if !ids[step.Synchronize.Target] {
			return fmt.Errorf("flow[%d]: synchronize references unknown construct %q", index, step.Synchronize.Target)
		}
		if step.Synchronize.Kind != "" && !validOperationKind(step.Synchronize.Kind) {
			return fmt.Errorf("flow[%d]: unknown operation kind %q", index, step.Synchronize.Kind)
		}
	}
	if step.Coordinate {
		verbs++
	}
	if verbs != 1 {
		return fmt.Errorf("flow[%d]: exactly one of stabilize, synchronize, coordinate is required", index)
	}
	return nil
}

func validOperationKind(kind string) bool {
	switch reality.OperationKind(kind) {
	case reality.OpStateSync, reality.OpDataTransfer, reality.OpEventPropagation,
		reality.OpCoherenceAlignment, reality.OpTemporalSync, reality.OpDimensionalAlign:
		return true
	}
	return false
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, ids map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertHealthAbove:
		if a.Construct == "" {
			return fmt.Errorf("assertions[%d]: construct is required for health_above", index)
		}
		if !ids[a.Construct] {
			return fmt.Errorf("assertions[%d]: unknown construct %q", index, a.Construct)
		}
		if !healthDimensions[a.Dimension] {
			return fmt.Errorf("assertions[%d]: unknown health dimension %q", index, a.Dimension)
		}
	case AssertPatternKinds:
		if a.Construct == "" {
			return fmt.Errorf("assertions[%d]: construct is required for pattern_kinds", index)
		}
		if !ids[a.Construct] {
			return fmt.Errorf("assertions[%d]: unknown construct %q", index, a.Construct)
		}
	case AssertOperationCounts:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for operation_counts", index)
		}
		if a.Kind != "" && !validOperationKind(a.Kind) {
			return fmt.Errorf("assertions[%d]: unknown operation kind %q", index, a.Kind)
		}
	case AssertDriftCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for drift_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// toConstruct converts a spec into the engine's construct type.
func (c ConstructSpec) toConstruct() *reality.Construct {
	construct := &reality.Construct{
		ID:   c.ID,
		Kind: reality.ConstructKind(c.Kind),
		Health: reality.Health{
			Stability:            c.Health.Stability,
			Coherence:            c.Health.Coherence,
			DimensionalIntegrity: c.Health.DimensionalIntegrity,
			TemporalStability:    c.Health.TemporalStability,
			Consistency:          c.Health.Consistency,
		},
	}
	if construct.Kind == "" {
		construct.Kind = reality.KindBaseline
	}
	for _, a := range c.Anchors {
		construct.Anchors = append(construct.Anchors, reality.AnchorPoint{
			ID:        a.ID,
			Position:  a.Position,
			Stability: a.Stability,
			Influence: a.Influence,
		})
	}
	for _, n := range c.Nodes {
		node := &reality.Node{
			ID:        n.ID,
			Kind:      reality.NodeKind(n.Kind),
			Position:  n.Position,
			Stability: n.Stability,
			Capacity:  n.Capacity,
		}
		if node.Kind == "" {
			node.Kind = reality.NodeSecondary
		}
		if node.Capacity == 0 {
			node.Capacity = 100
		}
		construct.Nodes = append(construct.Nodes, node)
	}
	return construct
}
