package topology

import (
	"testing"

	"github.com/starwell/coherence/internal/reality"
	"github.com/stretchr/testify/assert"
)

// chain builds nodes spaced so only neighbors share a strong link:
// consecutive nodes sit 1 apart (strength 0.5), skipping a node costs
// strength 1/3, just above the default 0.3 cutoff, so the threshold is
// raised in tests that need a pure chain.
func chain(n int) []*reality.Node {
	nodes := make([]*reality.Node, n)
	for i := range nodes {
		nodes[i] = &reality.Node{
			ID: string(rune('a' + i)), Position: []float64{float64(i)},
			Stability: 0.9, Capacity: 10,
		}
	}
	return nodes
}

func TestAnalyzeEmpty(t *testing.T) {
	assert.Equal(t, Metrics{}, Analyze(nil, DefaultConfig()))
}

func TestAnalyzeChainDiameter(t *testing.T) {
	nodes := chain(4)
	BuildConnections(nodes, DefaultConfig())

	cfg := DefaultConfig()
	cfg.StrongLink = 0.4 // only distance-1 links (strength 0.5) survive

	m := Analyze(nodes, cfg)
	assert.Equal(t, 3, m.Diameter, "path a-b-c-d has hop diameter 3")
	assert.Equal(t, 0.0, m.Clustering, "a chain has no triangles")
	assert.Equal(t, 3.0, m.Connectivity, "full mesh of 4 gives 12 connections / 4 nodes")
}

func TestAnalyzeTriangleClustering(t *testing.T) {
	nodes := []*reality.Node{
		{ID: "a", Position: []float64{0, 0}, Stability: 0.9, Capacity: 10},
		{ID: "b", Position: []float64{1, 0}, Stability: 0.9, Capacity: 10},
		{ID: "c", Position: []float64{0, 1}, Stability: 0.9, Capacity: 10},
	}
	BuildConnections(nodes, DefaultConfig())

	m := Analyze(nodes, DefaultConfig())
	assert.Equal(t, 1, m.Diameter, "every pair is directly linked")
	assert.Equal(t, 1.0, m.Clustering, "a triangle is fully clustered")
	assert.Greater(t, m.AvgStrength, 0.0)
}

func TestAnalyzePartialClustering(t *testing.T) {
	// A triangle plus one node too far to link: the stray node has no
	// strong neighbors and contributes 0, pulling the mean to 3/4.
	nodes := []*reality.Node{
		{ID: "a", Position: []float64{0, 0}, Stability: 0.9, Capacity: 10},
		{ID: "b", Position: []float64{1, 0}, Stability: 0.9, Capacity: 10},
		{ID: "c", Position: []float64{0, 1}, Stability: 0.9, Capacity: 10},
		{ID: "d", Position: []float64{100, 100}, Stability: 0.9, Capacity: 10},
	}
	BuildConnections(nodes, DefaultConfig())

	m := Analyze(nodes, DefaultConfig())
	assert.Equal(t, 0.75, m.Clustering)
}

func TestAnalyzeIsolatedNodes(t *testing.T) {
	// Nodes too far apart for any strong link: diameter collapses to 0.
	nodes := []*reality.Node{
		{ID: "a", Position: []float64{0}, Stability: 0.9, Capacity: 10},
		{ID: "b", Position: []float64{100}, Stability: 0.9, Capacity: 10},
	}
	BuildConnections(nodes, DefaultConfig())

	m := Analyze(nodes, DefaultConfig())
	assert.Equal(t, 0, m.Diameter)
	assert.Equal(t, 0.0, m.Clustering)
	assert.Equal(t, 1.0, m.Connectivity, "weak links still count as connections")
}
