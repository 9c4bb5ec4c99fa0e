// Package synchro coordinates state synchronization across reality
// constructs.
//
// A Coordinator tracks a set of constructs, measures pairwise drift,
// and executes synchronization operations that converge target health
// toward source health. Operations flow through a priority queue
// (critical first, FIFO within a class) and are validated twice: once
// when enqueued and again immediately before execution, so an
// operation whose deadline lapses while queued fails with an explicit
// reason instead of running late.
//
// Operations on disjoint construct pairs execute concurrently on a
// worker pool; operations sharing an endpoint serialize through
// per-construct locks acquired in sorted ID order.
package synchro
