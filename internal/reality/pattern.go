package reality

import (
	"slices"
	"strings"
	"time"
)

// PatternKind names a detected class of instability.
type PatternKind string

const (
	PatternCoherenceBreakdown PatternKind = "coherenceBreakdown"
	PatternDimensionalShift   PatternKind = "dimensionalShift"
	PatternTemporalDistortion PatternKind = "temporalDistortion"
	PatternQuantumDecoherence PatternKind = "quantumDecoherence"
	PatternRealityFracture    PatternKind = "realityFracture"
	PatternAnchorFailure      PatternKind = "anchorFailure"
)

// Scope descriptors attached to patterns. A pattern above the wide-scope
// severity cutoff is reported as spanning rather than local.
const (
	ScopePoint   = "point"
	ScopeWindow  = "window"
	ScopeLocal   = "local"
	ScopeNetwork = "network"
)

// Pattern is a detected instability. Immutable after creation: the
// analyzer builds it once and every later stage reads it by value.
type Pattern struct {
	ID               string      `json:"id"`
	Kind             PatternKind `json:"kind"`
	Severity         float64     `json:"severity"`
	AffectedNodes    []string    `json:"affected_nodes"`
	TemporalScope    string      `json:"temporal_scope"`
	DimensionalScope string      `json:"dimensional_scope"`
	DetectedAt       time.Time   `json:"detected_at"`
}

// SortPatterns orders patterns by descending severity, then ascending
// kind, then ascending id. Every consumer relies on this being total.
func SortPatterns(patterns []Pattern) {
	slices.SortStableFunc(patterns, func(a, b Pattern) int {
		switch {
		case a.Severity > b.Severity:
			return -1
		case a.Severity < b.Severity:
			return 1
		}
		if c := strings.Compare(string(a.Kind), string(b.Kind)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
