package stabilize

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/starwell/coherence/internal/reality"
	"github.com/starwell/coherence/internal/topology"
)

// StrategyKind names an adaptation strategy.
type StrategyKind string

const (
	// StrategyNetworkReconfiguration rebuilds node connections and the
	// connection matrix from current positions.
	StrategyNetworkReconfiguration StrategyKind = "networkReconfiguration"

	// StrategyAlgorithmAdjustment re-tunes weak nodes by activating
	// adaptive compensation on them.
	StrategyAlgorithmAdjustment StrategyKind = "algorithmAdjustment"
)

// Strategy is one selected adaptation response.
type Strategy struct {
	ID       string           `json:"id"`
	Kind     StrategyKind     `json:"kind"`
	Priority reality.Priority `json:"priority"`
	Reason   string           `json:"reason"`
}

// StrategyOutcome records the execution of one strategy.
type StrategyOutcome struct {
	Strategy       Strategy      `json:"strategy"`
	Success        bool          `json:"success"`
	Effectiveness  float64       `json:"effectiveness"`
	EnergyUsed     float64       `json:"energy_used"`
	ProcessingTime time.Duration `json:"processing_time"`
	NodesAdjusted  int           `json:"nodes_adjusted,omitempty"`
}

// AdaptationResult is the outcome of adapting one construct to a set of
// observed changes.
type AdaptationResult struct {
	ConstructID             string            `json:"construct_id"`
	Impact                  float64           `json:"impact"`
	NetworkImpact           float64           `json:"network_impact"`
	Strategies              []StrategyOutcome `json:"strategies"`
	AdaptationEffectiveness float64           `json:"adaptation_effectiveness"`
	NetworkResilience       float64           `json:"network_resilience"`
	AdaptedAt               time.Time         `json:"adapted_at"`
}

// Controller reacts to environmental changes by selecting and executing
// adaptation strategies against a construct's node network.
type Controller struct {
	cfg   Config
	topo  topology.Config
	clock reality.Clock
	ids   reality.IDGenerator
}

// NewController creates an adaptation controller.
func NewController(cfg Config, topo topology.Config, clock reality.Clock, ids reality.IDGenerator) *Controller {
	return &Controller{cfg: cfg, topo: topo, clock: clock, ids: ids}
}

// Adapt assesses the aggregate impact of the changes, selects strategies,
// and executes them in priority order.
//
// Impact is the mean change magnitude; network impact scales it by the
// mean affected fraction. Past the reconfigure threshold a full network
// reconfiguration runs first; an algorithm adjustment pass always runs.
// Network resilience grades with the fraction of successful strategies
// rather than collapsing to a pass/fail value.
func (ctl *Controller) Adapt(ctx context.Context, c *reality.Construct, changes []reality.Change) (AdaptationResult, error) {
	if len(changes) == 0 {
		return AdaptationResult{}, reality.NewValidationError("no changes provided", c.ID)
	}

	var magSum, scopeSum float64
	for _, ch := range changes {
		magSum += reality.Clamp01(ch.Magnitude)
		scopeSum += reality.Clamp01(ch.Scope)
	}
	impact := magSum / float64(len(changes))
	networkImpact := reality.Clamp01(impact * (scopeSum / float64(len(changes))))

	res := AdaptationResult{
		ConstructID:   c.ID,
		Impact:        impact,
		NetworkImpact: networkImpact,
	}

	var strategies []Strategy
	if networkImpact > ctl.cfg.ReconfigureThreshold {
		strategies = append(strategies, Strategy{
			ID:       ctl.ids.NewID(),
			Kind:     StrategyNetworkReconfiguration,
			Priority: reality.PriorityHigh,
			Reason:   fmt.Sprintf("network impact %.2f exceeds reconfigure threshold %.2f", networkImpact, ctl.cfg.ReconfigureThreshold),
		})
	}
	strategies = append(strategies, Strategy{
		ID:       ctl.ids.NewID(),
		Kind:     StrategyAlgorithmAdjustment,
		Priority: reality.PriorityLow,
		Reason:   "standing re-tune of weak nodes after environmental change",
	})
	slices.SortStableFunc(strategies, func(a, b Strategy) int {
		return a.Priority.Rank() - b.Priority.Rank()
	})

	succeeded := 0
	var effSum float64
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("adaptation cancelled: %w", err)
		}
		outcome := ctl.execute(c, s, networkImpact)
		if outcome.Success {
			succeeded++
		}
		effSum += outcome.Effectiveness
		res.Strategies = append(res.Strategies, outcome)
	}

	res.AdaptationEffectiveness = effSum / float64(len(res.Strategies))
	res.NetworkResilience = 0.5 + 0.4*float64(succeeded)/float64(len(res.Strategies))
	res.AdaptedAt = ctl.clock.Now()
	return res, nil
}

func (ctl *Controller) execute(c *reality.Construct, s Strategy, networkImpact float64) StrategyOutcome {
	outcome := StrategyOutcome{Strategy: s}

	switch s.Kind {
	case StrategyNetworkReconfiguration:
		topology.BuildConnections(c.Nodes, ctl.topo)
		c.ConnMatrix = topology.ConnectionMatrix(c.Nodes)
		outcome.Effectiveness = reality.Clamp01(0.9 - 0.2*networkImpact)
		outcome.EnergyUsed = 50 * networkImpact
		outcome.ProcessingTime = time.Duration(math.Round(networkImpact * float64(ctl.cfg.TimeScale)))

	case StrategyAlgorithmAdjustment:
		var stabilitySum float64
		for _, n := range c.Nodes {
			stabilitySum += n.Stability
			if n.Stability < ctl.cfg.WeakNodeThreshold && n.AddAlgorithm(reality.AlgAdaptiveCompensation) {
				outcome.NodesAdjusted++
			}
		}
		avg := 0.0
		if len(c.Nodes) > 0 {
			avg = stabilitySum / float64(len(c.Nodes))
		}
		outcome.Effectiveness = reality.Clamp01(0.6 + 0.2*avg)
		outcome.EnergyUsed = 10
		outcome.ProcessingTime = ctl.cfg.TimeScale / 10
	}

	outcome.Success = outcome.Effectiveness >= ctl.cfg.MinEffectiveness
	return outcome
}
