package reality

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// NodeKind classifies a stabilization node's role in the network.
type NodeKind string

const (
	NodePrimary   NodeKind = "primary"
	NodeSecondary NodeKind = "secondary"
	NodeBackup    NodeKind = "backup"
	NodeEmergency NodeKind = "emergency"
	NodeAdaptive  NodeKind = "adaptive"
)

// Algorithm identifies a remediation algorithm a node can run.
// The string forms are the wire names used in plans and reports.
type Algorithm string

const (
	AlgCoherenceReinforcement  Algorithm = "coherenceReinforcement"
	AlgDimensionalAnchoring    Algorithm = "dimensionalAnchoring"
	AlgTemporalSynchronization Algorithm = "temporalSynchronization"
	AlgQuantumStabilization    Algorithm = "quantumStabilization"
	AlgAdaptiveCompensation    Algorithm = "adaptiveCompensation"
)

// Connection is a directed link from its owning node to TargetID.
//
// Strength is derived from spatial distance as 1/(1+d) so it decays toward
// 0 with distance and equals 1 at distance 0.
type Connection struct {
	TargetID    string        `json:"target_id"`
	Strength    float64       `json:"strength"`
	Latency     time.Duration `json:"latency"`
	Reliability float64       `json:"reliability"`
	LastSync    time.Time     `json:"last_sync"`
}

// Node is a stabilization node inside a construct's network.
// Nodes are owned exclusively by their construct and are never shared.
type Node struct {
	ID               string       `json:"id"`
	Kind             NodeKind     `json:"kind"`
	Position         []float64    `json:"position"`
	Stability        float64      `json:"stability"`
	Capacity         float64      `json:"capacity"`
	Connections      []Connection `json:"connections,omitempty"`
	ActiveAlgorithms []Algorithm  `json:"active_algorithms,omitempty"`
	LastActivity     time.Time    `json:"last_activity"`
}

// Validate checks the structural invariants of a node.
func (n *Node) Validate() error {
	if n.ID == "" {
		return NewValidationError("node id must not be blank", "")
	}
	if math.IsNaN(n.Stability) || n.Stability < 0 || n.Stability > 1 {
		return NewValidationError(fmt.Sprintf("node %s stability must lie in [0, 1]", n.ID), "")
	}
	if math.IsNaN(n.Capacity) || n.Capacity <= 0 {
		return NewValidationError(fmt.Sprintf("node %s capacity must be positive", n.ID), "")
	}
	return nil
}

// AddAlgorithm adds alg with set semantics and keeps the slice sorted.
// Reports whether the set changed.
func (n *Node) AddAlgorithm(alg Algorithm) bool {
	if slices.Contains(n.ActiveAlgorithms, alg) {
		return false
	}
	n.ActiveAlgorithms = append(n.ActiveAlgorithms, alg)
	slices.Sort(n.ActiveAlgorithms)
	return true
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Position = append([]float64(nil), n.Position...)
	out.Connections = append([]Connection(nil), n.Connections...)
	out.ActiveAlgorithms = append([]Algorithm(nil), n.ActiveAlgorithms...)
	return &out
}
