// Package reality defines the core data model for the stabilization engine:
// constructs and their node networks, instability patterns, stabilization
// plans, synchronization operations, and the constrained payload values with
// their canonical encoding.
//
// This package contains types and pure helpers only. All other internal
// packages import reality; reality imports nothing internal. This keeps it
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Every health score lives in [0, 1]; mutators clamp, never error
//   - Payload values are a closed union (no floats, no free-form any)
//   - All orderings have explicit tie-break keys
//   - All JSON tags use snake_case
package reality
