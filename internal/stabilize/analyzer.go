package stabilize

import (
	"slices"
	"time"

	"github.com/starwell/coherence/internal/reality"
)

// Measures holds the per-dimension instability measures, each the
// complement of the matching health score.
type Measures struct {
	Coherence   float64 `json:"coherence"`
	Dimensional float64 `json:"dimensional"`
	Temporal    float64 `json:"temporal"`
	Consistency float64 `json:"consistency"`
}

// Analysis is the analyzer's full report for one construct.
type Analysis struct {
	ConstructID   string            `json:"construct_id"`
	Overall       float64           `json:"overall"`
	Measures      Measures          `json:"measures"`
	Risk          reality.RiskLevel `json:"risk"`
	CriticalNodes []string          `json:"critical_nodes"`
	Patterns      []reality.Pattern `json:"patterns"`
	AnalyzedAt    time.Time         `json:"analyzed_at"`
}

// Analyzer detects instability patterns in a construct.
//
// Analysis never mutates the construct. Every detection rule is a strict
// threshold over the current health snapshot, so analyzing twice without
// an intervening mutation yields identical results (ids and timestamps
// aside).
type Analyzer struct {
	cfg   Config
	clock reality.Clock
	ids   reality.IDGenerator
}

// NewAnalyzer creates an analyzer with injected clock and id generator.
func NewAnalyzer(cfg Config, clock reality.Clock, ids reality.IDGenerator) *Analyzer {
	return &Analyzer{cfg: cfg, clock: clock, ids: ids}
}

// Analyze measures instability across the four health dimensions and
// emits one pattern per dimension whose measure strictly exceeds the
// detection threshold. Anchor failures and overall fractures are
// additional detections layered on top of the dimensional rules.
func (a *Analyzer) Analyze(c *reality.Construct) Analysis {
	now := a.clock.Now()
	h := c.Health

	m := Measures{
		Coherence:   1 - h.Coherence,
		Dimensional: 1 - h.DimensionalIntegrity,
		Temporal:    1 - h.TemporalStability,
		Consistency: 1 - h.Consistency,
	}
	overall := (m.Coherence + m.Dimensional + m.Temporal + m.Consistency) / 4

	analysis := Analysis{
		ConstructID:   c.ID,
		Overall:       overall,
		Measures:      m,
		Risk:          classifyRisk(overall),
		CriticalNodes: criticalNodes(c.Nodes),
		AnalyzedAt:    now,
	}

	affected := affectedNodeIDs(c.Nodes)
	dimensional := []struct {
		measure float64
		kind    reality.PatternKind
	}{
		{m.Coherence, reality.PatternCoherenceBreakdown},
		{m.Dimensional, reality.PatternDimensionalShift},
		{m.Temporal, reality.PatternTemporalDistortion},
		{m.Consistency, reality.PatternQuantumDecoherence},
	}
	for _, d := range dimensional {
		if d.measure > a.cfg.DetectionThreshold {
			analysis.Patterns = append(analysis.Patterns, a.newPattern(d.kind, d.measure, affected, now))
		}
	}

	// Anchor failure: the weakest anchor sets the severity.
	if len(c.Anchors) > 0 {
		weakest := c.Anchors[0].Stability
		for _, anchor := range c.Anchors[1:] {
			weakest = min(weakest, anchor.Stability)
		}
		if weakest < a.cfg.AnchorFailureThreshold {
			analysis.Patterns = append(analysis.Patterns,
				a.newPattern(reality.PatternAnchorFailure, 1-weakest, affected, now))
		}
	}

	// Fracture: overall instability past the critical threshold is its
	// own pattern so the planner can address it directly.
	if overall > a.cfg.CriticalThreshold {
		analysis.Patterns = append(analysis.Patterns,
			a.newPattern(reality.PatternRealityFracture, overall, affected, now))
	}

	reality.SortPatterns(analysis.Patterns)
	return analysis
}

// wideScopeCutoff separates local findings from network-spanning ones.
const wideScopeCutoff = 0.5

func (a *Analyzer) newPattern(kind reality.PatternKind, severity float64, affected []string, now time.Time) reality.Pattern {
	severity = reality.Clamp01(severity)
	p := reality.Pattern{
		ID:               a.ids.NewID(),
		Kind:             kind,
		Severity:         severity,
		AffectedNodes:    affected,
		TemporalScope:    reality.ScopePoint,
		DimensionalScope: reality.ScopeLocal,
		DetectedAt:       now,
	}
	if severity > wideScopeCutoff {
		p.TemporalScope = reality.ScopeWindow
		p.DimensionalScope = reality.ScopeNetwork
	}
	return p
}

// criticalNodes returns the sorted ids of primary nodes; those are the
// ones whose loss takes the construct down with them.
func criticalNodes(nodes []*reality.Node) []string {
	var ids []string
	for _, n := range nodes {
		if n.Kind == reality.NodePrimary {
			ids = append(ids, n.ID)
		}
	}
	slices.Sort(ids)
	return ids
}

// affectedNodeIDs returns every node id, sorted. Dimensional instability
// is a construct-wide property, so patterns name the whole network rather
// than guessing at a subset.
func affectedNodeIDs(nodes []*reality.Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	slices.Sort(ids)
	return ids
}
