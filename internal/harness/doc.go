// Package harness executes scenario files against a full network.
//
// A scenario declares constructs, drives a flow of stabilize,
// synchronize, and coordinate steps against a fresh engine and
// coordinator, and checks the outcome with assertions, a golden
// snapshot, or both.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: shaky_pair
//	description: "Stabilizing one construct narrows pair drift"
//	constructs:
//	  - id: alpha
//	    kind: quantum
//	    health: { stability: 0.5, coherence: 0.6, dimensional_integrity: 0.9, temporal_stability: 0.9, consistency: 0.9 }
//	    nodes:
//	      - { id: alpha-n1, kind: primary, stability: 0.9, capacity: 120 }
//	  - id: beta
//	    health: { stability: 0.9, coherence: 0.9, dimensional_integrity: 0.9, temporal_stability: 0.9, consistency: 0.9 }
//	    nodes:
//	      - { id: beta-n1, stability: 0.8 }
//	flow:
//	  - stabilize: alpha
//	    expect: { valid: true, min_stability: 0.55 }
//	  - synchronize: { source: alpha, target: beta }
//	    expect: { success: true }
//	  - coordinate: true
//	assertions:
//	  - type: health_above
//	    construct: alpha
//	    dimension: stability
//	    value: 0.5
//	golden: shaky_pair
//
// # Assertion Types
//
//   - health_above: a health dimension (or its mean) strictly exceeds a bound
//   - pattern_kinds: the last stabilize step detected exactly this pattern kind set
//   - operation_counts: the journal holds exactly N operations, optionally of one kind
//   - drift_count: the journal holds exactly N drift events
//
// # Deterministic Execution
//
// Every run gets a fresh in-memory store, a manual clock starting at a
// fixed epoch, and sequence-numbered ids, so the same scenario always
// produces the same trace and the same golden bytes.
package harness
