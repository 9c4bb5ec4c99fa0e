package stabilize

import (
	"github.com/starwell/coherence/internal/reality"
)

// classifyRisk maps an instability or severity measure to a risk level.
// Thresholds are strict: exactly 0.8 is high, not critical.
func classifyRisk(v float64) reality.RiskLevel {
	switch {
	case v > 0.8:
		return reality.RiskCritical
	case v > 0.6:
		return reality.RiskHigh
	case v > 0.4:
		return reality.RiskMedium
	default:
		return reality.RiskLow
	}
}

// baseFailureProbability is the per-level floor for plan failure.
var baseFailureProbability = map[reality.RiskLevel]float64{
	reality.RiskLow:      0.05,
	reality.RiskMedium:   0.15,
	reality.RiskHigh:     0.25,
	reality.RiskCritical: 0.35,
}

// mitigationsByLevel lists the standing mitigations attached per level.
var mitigationsByLevel = map[reality.RiskLevel][]string{
	reality.RiskLow: {
		"monitor stability trend after execution",
	},
	reality.RiskMedium: {
		"monitor stability trend after execution",
		"stage steps with checkpoints between algorithms",
	},
	reality.RiskHigh: {
		"monitor stability trend after execution",
		"stage steps with checkpoints between algorithms",
		"pre-position backup nodes before execution",
	},
	reality.RiskCritical: {
		"monitor stability trend after execution",
		"stage steps with checkpoints between algorithms",
		"pre-position backup nodes before execution",
		"prepare emergency anchor protocol",
	},
}

// assessRisk judges a pattern set. Pure function of the patterns:
// the level comes from the worst severity, and the failure probability is
// the level's floor plus a capped per-affected-node increment. Execution
// history never feeds back into risk.
func assessRisk(patterns []reality.Pattern) reality.RiskAssessment {
	if len(patterns) == 0 {
		return reality.RiskAssessment{
			Level:              reality.RiskLow,
			FailureProbability: baseFailureProbability[reality.RiskLow],
			Mitigations:        mitigationsByLevel[reality.RiskLow],
		}
	}

	var worst float64
	affected := make(map[string]bool)
	for _, p := range patterns {
		worst = max(worst, p.Severity)
		for _, id := range p.AffectedNodes {
			affected[id] = true
		}
	}

	level := classifyRisk(worst)
	fp := baseFailureProbability[level] + min(0.10, 0.005*float64(len(affected)))
	return reality.RiskAssessment{
		Level:              level,
		FailureProbability: reality.Clamp01(fp),
		Mitigations:        mitigationsByLevel[level],
	}
}
