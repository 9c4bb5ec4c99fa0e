package engine

import (
	"time"

	"github.com/starwell/coherence/internal/reality"
	"github.com/starwell/coherence/internal/stabilize"
	"github.com/starwell/coherence/internal/topology"
)

// Config tunes the network engine. The sub-configs feed the default
// pipeline components when none are injected through Deps.
type Config struct {
	// Stabilize tunes the analyzer, planner, executor, and adaptation
	// controller.
	Stabilize stabilize.Config

	// Topology tunes connection derivation, graph metrics, and the
	// stability monitor.
	Topology topology.Config

	// HealthInterval is the period of the background stability monitor
	// started by Run.
	HealthInterval time.Duration

	// HealthyStability is the stability at or above which a construct
	// with no detected patterns skips remediation entirely.
	HealthyStability float64

	// AlertRisk is the minimum analysis risk that publishes a stability
	// alert to the sink.
	AlertRisk reality.RiskLevel
}

// DefaultConfig returns the standard engine tuning.
func DefaultConfig() Config {
	return Config{
		Stabilize:        stabilize.DefaultConfig(),
		Topology:         topology.DefaultConfig(),
		HealthInterval:   time.Minute,
		HealthyStability: 0.8,
		AlertRisk:        reality.RiskHigh,
	}
}
