package stabilize

import "github.com/starwell/coherence/internal/reality"

// Recovery gains. Each algorithm closes a severity-weighted fraction of
// the gap to 1.0: the target dimension recovers at recoveryGain, overall
// stability at the gentler stabilityGain. Because gains scale with the
// remaining gap, repeated application converges instead of oscillating.
const (
	recoveryGain  = 0.8
	stabilityGain = 0.5
)

// algorithmFunc applies one remediation algorithm to a health snapshot.
// Deterministic: the result depends only on the current health and the
// step severity.
type algorithmFunc func(h *reality.Health, severity float64)

// algorithmFor resolves a plan step's algorithm to its implementation.
func algorithmFor(alg reality.Algorithm) (algorithmFunc, bool) {
	switch alg {
	case reality.AlgCoherenceReinforcement:
		return reinforceCoherence, true
	case reality.AlgDimensionalAnchoring:
		return anchorDimensions, true
	case reality.AlgTemporalSynchronization:
		return synchronizeTemporal, true
	case reality.AlgQuantumStabilization:
		return stabilizeQuantum, true
	case reality.AlgAdaptiveCompensation:
		return adaptiveCompensate, true
	default:
		return nil, false
	}
}

func reinforceCoherence(h *reality.Health, severity float64) {
	h.Coherence = restore(h.Coherence, severity)
	h.Stability = steady(h.Stability, severity)
}

func anchorDimensions(h *reality.Health, severity float64) {
	h.DimensionalIntegrity = restore(h.DimensionalIntegrity, severity)
	h.Stability = steady(h.Stability, severity)
}

func synchronizeTemporal(h *reality.Health, severity float64) {
	h.TemporalStability = restore(h.TemporalStability, severity)
	h.Stability = steady(h.Stability, severity)
}

func stabilizeQuantum(h *reality.Health, severity float64) {
	h.Consistency = restore(h.Consistency, severity)
	h.Stability = steady(h.Stability, severity)
}

// adaptiveCompensate restores whichever dimension is currently weakest.
// Used for fracture and anchor patterns, which have no single dimension
// of their own.
func adaptiveCompensate(h *reality.Health, severity float64) {
	weakest := &h.Coherence
	for _, candidate := range []*float64{&h.DimensionalIntegrity, &h.TemporalStability, &h.Consistency} {
		if *candidate < *weakest {
			weakest = candidate
		}
	}
	*weakest = restore(*weakest, severity)
	h.Stability = steady(h.Stability, severity)
}

func restore(v, severity float64) float64 {
	return reality.Clamp01(v + severity*recoveryGain*(1-v))
}

func steady(v, severity float64) float64 {
	return reality.Clamp01(v + severity*stabilityGain*(1-v))
}
