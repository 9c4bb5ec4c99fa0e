package topology

import "github.com/starwell/coherence/internal/reality"

// Metrics summarizes the shape of a node network.
type Metrics struct {
	// Connectivity is total connections divided by node count.
	Connectivity float64 `json:"connectivity"`

	// AvgStrength is the mean strength across all connections.
	AvgStrength float64 `json:"avg_strength"`

	// Diameter is the maximum BFS hop distance between any two nodes
	// reachable over strong links. Unreachable pairs are ignored.
	Diameter int `json:"diameter"`

	// Clustering is the mean local clustering coefficient over the
	// strong-link adjacency.
	Clustering float64 `json:"clustering"`
}

// Analyze computes graph metrics over the nodes' current connections.
// Only links with strength >= cfg.StrongLink participate in diameter and
// clustering; connectivity and average strength count every link.
func Analyze(nodes []*reality.Node, cfg Config) Metrics {
	if len(nodes) == 0 {
		return Metrics{}
	}

	var total int
	var strengthSum float64
	for _, n := range nodes {
		total += len(n.Connections)
		for _, c := range n.Connections {
			strengthSum += c.Strength
		}
	}

	m := Metrics{Connectivity: float64(total) / float64(len(nodes))}
	if total > 0 {
		m.AvgStrength = strengthSum / float64(total)
	}

	adj := strongAdjacency(nodes, cfg.StrongLink)
	m.Diameter = diameter(adj)
	m.Clustering = clustering(adj)
	return m
}

// strongAdjacency builds an index-based adjacency over links at or above
// the threshold. Connections to unknown targets are skipped.
func strongAdjacency(nodes []*reality.Node, threshold float64) [][]int {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
	}
	adj := make([][]int, len(nodes))
	for i, n := range nodes {
		for _, c := range n.Connections {
			j, ok := index[c.TargetID]
			if !ok || c.Strength < threshold {
				continue
			}
			adj[i] = append(adj[i], j)
		}
	}
	return adj
}

// diameter returns the longest shortest path, in hops, over the adjacency.
// Runs one BFS per node; node networks are small enough that the quadratic
// cost is irrelevant.
func diameter(adj [][]int) int {
	longest := 0
	dist := make([]int, len(adj))
	queue := make([]int, 0, len(adj))
	for start := range adj {
		for i := range dist {
			dist[i] = -1
		}
		dist[start] = 0
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, next := range adj[cur] {
				if dist[next] != -1 {
					continue
				}
				dist[next] = dist[cur] + 1
				if dist[next] > longest {
					longest = dist[next]
				}
				queue = append(queue, next)
			}
		}
	}
	return longest
}

// clustering returns the mean local clustering coefficient. Nodes with
// fewer than two strong neighbors contribute 0.
func clustering(adj [][]int) float64 {
	if len(adj) == 0 {
		return 0
	}
	linked := make([]map[int]bool, len(adj))
	for i, neighbors := range adj {
		linked[i] = make(map[int]bool, len(neighbors))
		for _, j := range neighbors {
			linked[i][j] = true
		}
	}

	var sum float64
	for _, neighbors := range adj {
		k := len(neighbors)
		if k < 2 {
			continue
		}
		closed := 0
		for a := 0; a < k; a++ {
			for b := a + 1; b < k; b++ {
				if linked[neighbors[a]][neighbors[b]] {
					closed++
				}
			}
		}
		possible := k * (k - 1) / 2
		sum += float64(closed) / float64(possible)
	}
	return sum / float64(len(adj))
}
