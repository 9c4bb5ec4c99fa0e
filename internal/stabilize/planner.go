package stabilize

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/starwell/coherence/internal/reality"
)

// Planner turns detected patterns into an ordered stabilization plan.
type Planner struct {
	cfg   Config
	clock reality.Clock
	ids   reality.IDGenerator
}

// NewPlanner creates a planner with injected clock and id generator.
func NewPlanner(cfg Config, clock reality.Clock, ids reality.IDGenerator) *Planner {
	return &Planner{cfg: cfg, clock: clock, ids: ids}
}

// BuildPlan creates one step per pattern and orders the steps by
// descending priority, breaking ties by ascending detection time and then
// ascending pattern id. The highest-severity pattern is always remediated
// first. An empty pattern set yields an empty plan, not an error.
func (p *Planner) BuildPlan(constructID string, patterns []reality.Pattern) reality.Plan {
	plan := reality.Plan{
		ID:          p.ids.NewID(),
		ConstructID: constructID,
		Risk:        assessRisk(patterns),
		CreatedAt:   p.clock.Now(),
	}
	plan.SuccessProbability = 1 - plan.Risk.FailureProbability

	ordered := append([]reality.Pattern(nil), patterns...)
	slices.SortStableFunc(ordered, func(a, b reality.Pattern) int {
		pa, pb := stepPriority(a.Severity), stepPriority(b.Severity)
		if pa != pb {
			return pb - pa // higher priority first
		}
		if !a.DetectedAt.Equal(b.DetectedAt) {
			if a.DetectedAt.Before(b.DetectedAt) {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})

	for _, pattern := range ordered {
		step := reality.Step{
			ID:              p.ids.NewID(),
			PatternID:       pattern.ID,
			PatternKind:     pattern.Kind,
			Algorithm:       algorithmForPattern(pattern.Kind),
			Priority:        stepPriority(pattern.Severity),
			Severity:        pattern.Severity,
			EstimatedEnergy: pattern.Severity * p.cfg.EnergyScale,
			EstimatedTime:   time.Duration(math.Round(pattern.Severity * float64(p.cfg.TimeScale))),
		}
		plan.Steps = append(plan.Steps, step)
		plan.TotalEnergy += step.EstimatedEnergy
		plan.EstimatedDuration += step.EstimatedTime
	}
	return plan
}

// stepPriority maps severity in [0, 1] to an integer priority in [0, 10].
func stepPriority(severity float64) int {
	return int(math.Round(reality.Clamp01(severity) * 10))
}

// algorithmForPattern selects the remediation algorithm for a pattern
// kind. Kinds without a dedicated algorithm fall back to adaptive
// compensation.
func algorithmForPattern(kind reality.PatternKind) reality.Algorithm {
	switch kind {
	case reality.PatternCoherenceBreakdown:
		return reality.AlgCoherenceReinforcement
	case reality.PatternDimensionalShift:
		return reality.AlgDimensionalAnchoring
	case reality.PatternTemporalDistortion:
		return reality.AlgTemporalSynchronization
	case reality.PatternQuantumDecoherence:
		return reality.AlgQuantumStabilization
	default:
		return reality.AlgAdaptiveCompensation
	}
}
