package synchro

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMatrixSortsAndSeeds(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	m := BuildMatrix([]string{"beta", "alpha", "gamma"}, 0.8, 3, at)

	assert.Equal(t, []string{"alpha", "beta", "gamma"}, m.ConstructIDs)
	assert.Equal(t, int64(3), m.Version)
	assert.Equal(t, at, m.BuiltAt)

	require.Len(t, m.Strength, 3)
	for i := range m.Strength {
		require.Len(t, m.Strength[i], 3)
		for j := range m.Strength[i] {
			if i == j {
				assert.Equal(t, 1.0, m.Strength[i][j])
			} else {
				assert.Equal(t, 0.8, m.Strength[i][j])
				assert.Equal(t, m.Strength[j][i], m.Strength[i][j], "symmetric")
			}
		}
	}
}

func TestMatrixPairStrength(t *testing.T) {
	m := BuildMatrix([]string{"alpha", "beta"}, 0.8, 1, time.Time{})

	assert.Equal(t, 0.8, m.PairStrength("alpha", "beta"))
	assert.Equal(t, 0.8, m.PairStrength("beta", "alpha"))
	assert.Equal(t, 1.0, m.PairStrength("alpha", "alpha"))
	assert.Equal(t, 0.0, m.PairStrength("alpha", "unknown"))
	assert.Equal(t, 0.0, m.PairStrength("unknown", "beta"))
}

func TestMatrixCloneIsIndependent(t *testing.T) {
	m := BuildMatrix([]string{"alpha", "beta"}, 0.8, 1, time.Time{})
	c := m.Clone()

	c.ConstructIDs[0] = "mutated"
	c.Strength[0][1] = 0.1

	assert.Equal(t, "alpha", m.ConstructIDs[0])
	assert.Equal(t, 0.8, m.Strength[0][1])
}

func TestEmptyMatrix(t *testing.T) {
	m := BuildMatrix(nil, 0.8, 0, time.Time{})
	assert.Empty(t, m.ConstructIDs)
	assert.Empty(t, m.Strength)
	assert.Equal(t, 0.0, m.PairStrength("a", "b"))
}
