// Package topology derives node connections from spatial positions and
// computes graph and stability metrics over a construct's node network.
//
// Everything here is a pure function over reality types: no goroutines, no
// clocks, no state. Callers pass the observation time in explicitly, which
// keeps every metric reproducible in tests.
package topology
