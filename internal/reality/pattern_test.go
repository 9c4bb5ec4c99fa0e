package reality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortPatternsOrdering(t *testing.T) {
	at := time.Unix(500, 0)
	patterns := []Pattern{
		{ID: "p3", Kind: PatternTemporalDistortion, Severity: 0.4, DetectedAt: at},
		{ID: "p1", Kind: PatternCoherenceBreakdown, Severity: 0.9, DetectedAt: at},
		{ID: "p4", Kind: PatternCoherenceBreakdown, Severity: 0.4, DetectedAt: at},
		{ID: "p2", Kind: PatternCoherenceBreakdown, Severity: 0.4, DetectedAt: at},
	}

	SortPatterns(patterns)

	// Severity descends; ties break by kind then id.
	ids := []string{patterns[0].ID, patterns[1].ID, patterns[2].ID, patterns[3].ID}
	assert.Equal(t, []string{"p1", "p2", "p4", "p3"}, ids)
}
