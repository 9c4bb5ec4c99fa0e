package synchro

import (
	"sort"
	"time"
)

// Matrix captures pairwise synchronization strength across the tracked
// construct set. Strength is symmetric with 1.0 on the diagonal; the
// matrix is rebuilt, with its version bumped, whenever the tracked set
// changes.
type Matrix struct {
	ConstructIDs []string    `json:"construct_ids"`
	Strength     [][]float64 `json:"strength"`
	Version      int64       `json:"version"`
	BuiltAt      time.Time   `json:"built_at"`
}

// BuildMatrix constructs a matrix over ids (sorted copy) with baseline
// strength on every off-diagonal cell.
func BuildMatrix(ids []string, baseline float64, version int64, at time.Time) Matrix {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	strength := make([][]float64, len(sorted))
	for i := range strength {
		row := make([]float64, len(sorted))
		for j := range row {
			if i == j {
				row[j] = 1
			} else {
				row[j] = baseline
			}
		}
		strength[i] = row
	}
	return Matrix{
		ConstructIDs: sorted,
		Strength:     strength,
		Version:      version,
		BuiltAt:      at,
	}
}

// PairStrength returns the strength between two constructs, or 0 when
// either is not part of the matrix.
func (m Matrix) PairStrength(a, b string) float64 {
	i, j := m.index(a), m.index(b)
	if i < 0 || j < 0 {
		return 0
	}
	return m.Strength[i][j]
}

func (m Matrix) index(id string) int {
	i := sort.SearchStrings(m.ConstructIDs, id)
	if i < len(m.ConstructIDs) && m.ConstructIDs[i] == id {
		return i
	}
	return -1
}

// Clone returns a defensive copy.
func (m Matrix) Clone() Matrix {
	out := m
	out.ConstructIDs = append([]string(nil), m.ConstructIDs...)
	out.Strength = make([][]float64, len(m.Strength))
	for i, row := range m.Strength {
		out.Strength[i] = append([]float64(nil), row...)
	}
	return out
}
