package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// driftingPairManifest declares two constructs with diverged health, so
// the round converges them and the drift sweep has something to find
// before synchronization.
const driftingPairManifest = `
construct: alpha: {
	health: {
		stability:             0.9
		coherence:             0.9
		dimensional_integrity: 0.9
		temporal_stability:    0.9
		consistency:           0.9
	}
	nodes: [{
		id:        "alpha-n1"
		kind:      "primary"
		stability: 0.9
		capacity:  100
	}]
}
construct: beta: {
	health: {
		stability:             0.5
		coherence:             0.5
		dimensional_integrity: 0.5
		temporal_stability:    0.5
		consistency:           0.5
	}
	nodes: [{
		id:        "beta-n1"
		kind:      "primary"
		stability: 0.6
		capacity:  100
	}]
}
`

func TestSyncHealthyPair(t *testing.T) {
	manifestPath := writeManifest(t, healthyPairManifest)

	out, _, err := runCLI(t, "sync", manifestPath)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ synchronized 2/2 construct(s)")
	assert.Contains(t, out, "no residual drift")
}

func TestSyncDriftingPairConverges(t *testing.T) {
	manifestPath := writeManifest(t, driftingPairManifest)

	out, _, err := runCLI(t, "sync", manifestPath)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ synchronized 2/2 construct(s)")
}

func TestSyncJSON(t *testing.T) {
	manifestPath := writeManifest(t, driftingPairManifest)

	out, _, err := runCLI(t, "sync", manifestPath, "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	payload, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var summary SyncSummary
	require.NoError(t, json.Unmarshal(payload, &summary))

	assert.Equal(t, 2, summary.Round.Requested)
	assert.Equal(t, 2, summary.Round.Synchronized)
	// One stateSync per ordered pair.
	assert.Equal(t, 2, summary.Round.Coordination.Coordinated)
	assert.Equal(t, 2, summary.Round.Coordination.Successful)
	assert.Greater(t, summary.Round.Coordination.EnergyConsumed, 0.0)
}

func TestSyncSingleConstructFails(t *testing.T) {
	manifestPath := writeManifest(t, shakyManifest)

	out, _, err := runCLI(t, "sync", manifestPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "VALIDATION_FAILED")
}

func TestSyncBadManifest(t *testing.T) {
	_, _, err := runCLI(t, "sync", "/does/not/exist.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
