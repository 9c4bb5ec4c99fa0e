package synchro

import (
	"math"
	"time"

	"github.com/starwell/coherence/internal/reality"
)

// DriftEvent records measured divergence between a construct pair.
// ConstructA sorts before ConstructB; Direction names the construct
// with the higher mean health (the leader the other should converge
// toward), or is empty when the pair is exactly balanced.
type DriftEvent struct {
	ID         string    `json:"id"`
	ConstructA string    `json:"construct_a"`
	ConstructB string    `json:"construct_b"`
	Kind       string    `json:"kind"`
	Magnitude  float64   `json:"magnitude"`
	Direction  string    `json:"direction,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}

// dimensionNames index-aligns with reality.Health.Scores.
var dimensionNames = [5]string{"stability", "coherence", "dimensional", "temporal", "consistency"}

// driftMagnitude is the mean absolute difference across the five
// health scores, capped at ceil. Identical healths measure exactly 0.
func driftMagnitude(a, b reality.Health, ceil float64) float64 {
	as, bs := a.Scores(), b.Scores()
	var sum float64
	for i := range as {
		sum += math.Abs(as[i] - bs[i])
	}
	mag := sum / float64(len(as))
	if mag > ceil {
		return ceil
	}
	return mag
}

// dominantDimension names the score with the largest absolute
// difference. Ties resolve to the earliest dimension in declaration
// order.
func dominantDimension(a, b reality.Health) string {
	as, bs := a.Scores(), b.Scores()
	best, bestDelta := 0, -1.0
	for i := range as {
		if d := math.Abs(as[i] - bs[i]); d > bestDelta {
			best, bestDelta = i, d
		}
	}
	return dimensionNames[best]
}

// leaderID returns the ID of the construct with the higher mean
// health, or "" when both means are equal.
func leaderID(aID string, a reality.Health, bID string, b reality.Health) string {
	am, bm := a.Mean(), b.Mean()
	switch {
	case am > bm:
		return aID
	case bm > am:
		return bID
	default:
		return ""
	}
}
