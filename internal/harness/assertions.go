package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/starwell/coherence/internal/engine"
	"github.com/starwell/coherence/internal/reality"
	"github.com/starwell/coherence/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

// AssertionContext provides the final network and journal for
// evaluating assertions.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	Network *engine.Network

	// Patterns holds what the most recent stabilize step detected,
	// per construct.
	Patterns map[string][]reality.Pattern
}

// EvaluateAssertions evaluates all assertions against the final state.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertHealthAbove:
			err = assertHealthAbove(actx, assertion)
		case AssertPatternKinds:
			err = assertPatternKinds(actx, assertion)
		case AssertOperationCounts:
			err = assertOperationCounts(actx, assertion)
		case AssertDriftCount:
			err = assertDriftCount(actx, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertHealthAbove checks that a health dimension strictly exceeds the
// bound on the construct's final state.
func assertHealthAbove(actx *AssertionContext, assertion Assertion) error {
	c, err := actx.Network.Reality(assertion.Construct)
	if err != nil {
		return &AssertionError{
			Type:     AssertHealthAbove,
			Expected: fmt.Sprintf("construct %s present", assertion.Construct),
			Actual:   err.Error(),
		}
	}

	actual := healthDimension(c.Health, assertion.Dimension)
	if actual > assertion.Value {
		return nil
	}
	return &AssertionError{
		Type:     AssertHealthAbove,
		Expected: fmt.Sprintf("%s.%s > %g", assertion.Construct, assertion.Dimension, assertion.Value),
		Actual:   fmt.Sprintf("%s.%s = %g", assertion.Construct, assertion.Dimension, actual),
	}
}

func healthDimension(h reality.Health, name string) float64 {
	switch name {
	case "stability":
		return h.Stability
	case "coherence":
		return h.Coherence
	case "dimensional_integrity":
		return h.DimensionalIntegrity
	case "temporal_stability":
		return h.TemporalStability
	case "consistency":
		return h.Consistency
	case "mean":
		return h.Mean()
	}
	return 0
}

// assertPatternKinds checks that the construct's most recent stabilize
// step detected exactly the given pattern kind set (order-insensitive,
// duplicates collapse).
func assertPatternKinds(actx *AssertionContext, assertion Assertion) error {
	detected, ok := actx.Patterns[assertion.Construct]
	if !ok {
		return &AssertionError{
			Type:     AssertPatternKinds,
			Expected: fmt.Sprintf("a stabilize step for construct %s", assertion.Construct),
			Actual:   "construct was never stabilized in this scenario",
		}
	}

	got := kindSet(detected)
	want := append([]string(nil), assertion.Kinds...)
	sort.Strings(want)

	if !equalStrings(got, want) {
		return &AssertionError{
			Type:     AssertPatternKinds,
			Expected: fmt.Sprintf("%s patterns [%s]", assertion.Construct, strings.Join(want, ", ")),
			Actual:   fmt.Sprintf("[%s]", strings.Join(got, ", ")),
		}
	}
	return nil
}

func kindSet(patterns []reality.Pattern) []string {
	seen := make(map[string]bool, len(patterns))
	var kinds []string
	for _, p := range patterns {
		k := string(p.Kind)
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	sort.Strings(kinds)
	return kinds
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// assertOperationCounts checks the journaled operation count, filtered
// by kind when one is given.
func assertOperationCounts(actx *AssertionContext, assertion Assertion) error {
	ops, err := actx.Store.Operations(actx.Ctx, time.Time{}, time.Time{})
	if err != nil {
		return fmt.Errorf("operation_counts: reading journal: %w", err)
	}

	count := 0
	for _, op := range ops {
		if assertion.Kind == "" || string(op.Kind) == assertion.Kind {
			count++
		}
	}

	if count != assertion.Count {
		label := "operations"
		if assertion.Kind != "" {
			label = assertion.Kind + " operations"
		}
		return &AssertionError{
			Type:     AssertOperationCounts,
			Expected: fmt.Sprintf("%d %s", assertion.Count, label),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}

// assertDriftCount checks the journaled drift event count.
func assertDriftCount(actx *AssertionContext, assertion Assertion) error {
	events, err := actx.Store.DriftEvents(actx.Ctx, time.Time{}, time.Time{})
	if err != nil {
		return fmt.Errorf("drift_count: reading journal: %w", err)
	}

	if len(events) != assertion.Count {
		return &AssertionError{
			Type:     AssertDriftCount,
			Expected: fmt.Sprintf("%d drift events", assertion.Count),
			Actual:   fmt.Sprintf("%d", len(events)),
		}
	}
	return nil
}
