package reality

import (
	"fmt"
	"math"
	"time"
)

// ConstructKind tags the replication domain of a construct.
//
// Kinds are opaque labels: the engine never branches on them except to
// report them. Unknown kinds are accepted and treated as custom.
type ConstructKind string

const (
	KindBaseline      ConstructKind = "baseline"
	KindQuantum       ConstructKind = "quantum"
	KindDimensional   ConstructKind = "dimensional"
	KindTemporal      ConstructKind = "temporal"
	KindConsciousness ConstructKind = "consciousness"
	KindMultiversal   ConstructKind = "multiversal"
	KindCustom        ConstructKind = "custom"
)

// Health holds the five bounded health scores of a construct.
//
// Every score lives in [0, 1]. Mutating code must call Clamp afterwards;
// out-of-range inputs are clamped, never rejected.
type Health struct {
	Stability            float64 `json:"stability"`
	Coherence            float64 `json:"coherence"`
	DimensionalIntegrity float64 `json:"dimensional_integrity"`
	TemporalStability    float64 `json:"temporal_stability"`
	Consistency          float64 `json:"consistency"`
}

// Clamp bounds every score to [0, 1] in place.
func (h *Health) Clamp() {
	h.Stability = Clamp01(h.Stability)
	h.Coherence = Clamp01(h.Coherence)
	h.DimensionalIntegrity = Clamp01(h.DimensionalIntegrity)
	h.TemporalStability = Clamp01(h.TemporalStability)
	h.Consistency = Clamp01(h.Consistency)
}

// Scores returns the five scores in declaration order.
// The order is part of the drift and fingerprint contracts.
func (h Health) Scores() [5]float64 {
	return [5]float64{h.Stability, h.Coherence, h.DimensionalIntegrity, h.TemporalStability, h.Consistency}
}

// Mean returns the average of the five scores.
func (h Health) Mean() float64 {
	s := h.Scores()
	return (s[0] + s[1] + s[2] + s[3] + s[4]) / 5
}

// InRange reports whether every score already lies in [0, 1].
func (h Health) InRange() bool {
	for _, s := range h.Scores() {
		if math.IsNaN(s) || s < 0 || s > 1 {
			return false
		}
	}
	return true
}

// AnchorPoint pins a region of the construct against drift.
type AnchorPoint struct {
	ID        string    `json:"id"`
	Position  []float64 `json:"position"`
	Stability float64   `json:"stability"`
	Influence float64   `json:"influence"`
}

// Construct is a replicated state entity with a backing node network.
//
// A construct is owned by exactly one engine instance. Health is mutated
// only by the stabilization executor and the synchronization coordinator;
// both clamp after every write.
type Construct struct {
	ID                  string        `json:"id"`
	Kind                ConstructKind `json:"kind"`
	Health              Health        `json:"health"`
	Anchors             []AnchorPoint `json:"anchors,omitempty"`
	Nodes               []*Node       `json:"nodes"`
	ConnMatrix          [][]float64   `json:"conn_matrix,omitempty"`
	LastStabilization   time.Time     `json:"last_stabilization"`
	LastSynchronization time.Time     `json:"last_synchronization"`
}

// Validate checks the structural invariants of a construct.
// Returns a VALIDATION_FAILED error naming the first violated field.
func (c *Construct) Validate() error {
	if c.ID == "" {
		return NewValidationError("construct id must not be blank", "")
	}
	if !c.Health.InRange() {
		return NewValidationError("health scores must lie in [0, 1]", c.ID)
	}
	for _, a := range c.Anchors {
		if a.ID == "" {
			return NewValidationError("anchor id must not be blank", c.ID)
		}
		if math.IsNaN(a.Stability) || a.Stability < 0 || a.Stability > 1 {
			return NewValidationError(fmt.Sprintf("anchor %s stability must lie in [0, 1]", a.ID), c.ID)
		}
	}
	seen := make(map[string]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if err := n.Validate(); err != nil {
			return err
		}
		if seen[n.ID] {
			return NewValidationError(fmt.Sprintf("duplicate node id %s", n.ID), c.ID)
		}
		seen[n.ID] = true
	}
	if c.ConnMatrix != nil {
		if err := ValidateMatrix(c.ConnMatrix); err != nil {
			return NewValidationError(err.Error(), c.ID)
		}
	}
	return nil
}

// Node returns the node with the given id, or nil.
func (c *Construct) Node(id string) *Node {
	for _, n := range c.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Clone returns a deep copy. Snapshots handed across goroutine boundaries
// must be clones so callers never alias engine-owned state.
func (c *Construct) Clone() *Construct {
	if c == nil {
		return nil
	}
	out := *c
	out.Anchors = make([]AnchorPoint, len(c.Anchors))
	for i, a := range c.Anchors {
		out.Anchors[i] = a
		out.Anchors[i].Position = append([]float64(nil), a.Position...)
	}
	out.Nodes = make([]*Node, len(c.Nodes))
	for i, n := range c.Nodes {
		out.Nodes[i] = n.Clone()
	}
	out.ConnMatrix = CloneMatrix(c.ConnMatrix)
	return &out
}

// matrixEpsilon tolerates float drift when checking symmetry.
const matrixEpsilon = 1e-9

// ValidateMatrix checks the connection matrix invariants: square,
// symmetric, diagonal exactly 1.0, every cell in [0, 1].
func ValidateMatrix(m [][]float64) error {
	n := len(m)
	for i, row := range m {
		if len(row) != n {
			return fmt.Errorf("matrix row %d has %d cells, want %d", i, len(row), n)
		}
		for j, v := range row {
			if math.IsNaN(v) || v < 0 || v > 1 {
				return fmt.Errorf("matrix cell [%d][%d] = %v out of [0, 1]", i, j, v)
			}
			if i == j && v != 1.0 {
				return fmt.Errorf("matrix diagonal [%d][%d] = %v, want 1.0", i, j, v)
			}
			if j < i && math.Abs(v-m[j][i]) > matrixEpsilon {
				return fmt.Errorf("matrix not symmetric at [%d][%d]", i, j)
			}
		}
	}
	return nil
}

// CloneMatrix returns a deep copy of a connection matrix.
func CloneMatrix(m [][]float64) [][]float64 {
	if m == nil {
		return nil
	}
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Clamp01 bounds v to [0, 1]. NaN clamps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
