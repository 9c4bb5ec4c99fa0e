package topology

import (
	"time"

	"github.com/starwell/coherence/internal/reality"
)

// Monitor computes stability snapshots with a fixed configuration.
type Monitor struct {
	cfg Config
}

// NewMonitor creates a monitor.
func NewMonitor(cfg Config) *Monitor {
	return &Monitor{cfg: cfg}
}

// Snapshot computes the stability snapshot of nodes at now.
func (m *Monitor) Snapshot(nodes []*reality.Node, now time.Time) reality.StabilityMetrics {
	return Snapshot(nodes, m.cfg, now)
}

// Snapshot computes a stability snapshot of the node network at now.
//
// AvgStability and Variance are population statistics over node stability.
// A node is active when its LastActivity falls within cfg.ActivityWindow
// of now; uptime is the active fraction. Empty networks report zeros.
func Snapshot(nodes []*reality.Node, cfg Config, now time.Time) reality.StabilityMetrics {
	m := reality.StabilityMetrics{
		TotalNodes: len(nodes),
		ObservedAt: now,
	}
	if len(nodes) == 0 {
		return m
	}

	var sum float64
	for _, n := range nodes {
		sum += n.Stability
		if now.Sub(n.LastActivity) <= cfg.ActivityWindow {
			m.ActiveNodes++
		}
	}
	m.AvgStability = sum / float64(len(nodes))

	var sq float64
	for _, n := range nodes {
		d := n.Stability - m.AvgStability
		sq += d * d
	}
	m.Variance = sq / float64(len(nodes))
	m.Uptime = float64(m.ActiveNodes) / float64(len(nodes))
	return m
}
