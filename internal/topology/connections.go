package topology

import (
	"math"
	"time"

	"github.com/starwell/coherence/internal/reality"
)

// Config tunes connection derivation and metric thresholds.
type Config struct {
	// LatencyPerUnit converts spatial distance to link latency.
	LatencyPerUnit time.Duration

	// BaselineReliability is assigned to every derived connection.
	BaselineReliability float64

	// StrongLink is the minimum strength for an edge to count in graph
	// metrics (diameter, clustering).
	StrongLink float64

	// ActivityWindow bounds how old a node's LastActivity may be for the
	// node to count as active.
	ActivityWindow time.Duration
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		LatencyPerUnit:      10 * time.Millisecond,
		BaselineReliability: 0.95,
		StrongLink:          0.3,
		ActivityWindow:      5 * time.Minute,
	}
}

// Distance returns the Euclidean distance between two positions.
// Positions of different lengths are zero-padded to the longer one.
func Distance(a, b []float64) float64 {
	n := max(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		var av, bv float64
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		d := av - bv
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Strength converts a distance to a connection strength in (0, 1]:
// 1/(1+d), so strength is 1 at distance 0 and decays toward 0.
func Strength(distance float64) float64 {
	return 1 / (1 + distance)
}

// BuildConnections derives the full mesh: every node receives one
// connection to every other node, with strength, latency, and reliability
// computed from the pair's spatial distance. Existing connections are
// replaced, not merged.
func BuildConnections(nodes []*reality.Node, cfg Config) {
	for _, n := range nodes {
		n.Connections = n.Connections[:0]
	}
	for i, a := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			b := nodes[j]
			d := Distance(a.Position, b.Position)
			s := Strength(d)
			lat := time.Duration(d * float64(cfg.LatencyPerUnit))
			a.Connections = append(a.Connections, reality.Connection{
				TargetID:    b.ID,
				Strength:    s,
				Latency:     lat,
				Reliability: cfg.BaselineReliability,
			})
			b.Connections = append(b.Connections, reality.Connection{
				TargetID:    a.ID,
				Strength:    s,
				Latency:     lat,
				Reliability: cfg.BaselineReliability,
			})
		}
	}
}

// ConnectionMatrix returns the pairwise strength matrix in node order.
// The matrix is symmetric with diagonal exactly 1.0 and satisfies
// reality.ValidateMatrix by construction.
func ConnectionMatrix(nodes []*reality.Node) [][]float64 {
	m := make([][]float64, len(nodes))
	for i := range nodes {
		m[i] = make([]float64, len(nodes))
		m[i][i] = 1.0
	}
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			s := Strength(Distance(nodes[i].Position, nodes[j].Position))
			m[i][j] = s
			m[j][i] = s
		}
	}
	return m
}
