// Package stabilize implements the remediation pipeline for a single
// construct: the analyzer detects instability patterns, the planner turns
// patterns into an ordered plan, the executor runs the plan against the
// construct's health, and the adaptation controller reacts to
// environmental change.
//
// Every stage is deterministic. Outcomes are pure functions of construct
// state and tuning constants; there is no randomness anywhere in the
// pipeline, so identical inputs always produce identical plans and
// results.
package stabilize
