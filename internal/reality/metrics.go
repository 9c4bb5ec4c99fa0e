package reality

import "time"

// StabilityMetrics is a point-in-time health snapshot of a construct's
// node network, produced by the network monitor.
type StabilityMetrics struct {
	AvgStability float64   `json:"avg_stability"`
	Variance     float64   `json:"variance"`
	ActiveNodes  int       `json:"active_nodes"`
	TotalNodes   int       `json:"total_nodes"`
	Uptime       float64   `json:"uptime"`
	ObservedAt   time.Time `json:"observed_at"`
}

// Change describes an observed environmental change a network may need to
// adapt to. Magnitude is the strength of the change and Scope the fraction
// of the network it touches, both in [0, 1].
type Change struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Magnitude  float64   `json:"magnitude"`
	Scope      float64   `json:"scope"`
	DetectedAt time.Time `json:"detected_at"`
}
