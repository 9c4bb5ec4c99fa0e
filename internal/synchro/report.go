package synchro

import (
	"context"
	"sort"
	"time"

	"github.com/starwell/coherence/internal/reality"
)

// ConstructStatus is a construct's health snapshot inside a report.
type ConstructStatus struct {
	ID                  string                `json:"id"`
	Kind                reality.ConstructKind `json:"kind"`
	Health              reality.Health        `json:"health"`
	Fingerprint         string                `json:"fingerprint"`
	LastSynchronization time.Time             `json:"last_synchronization"`
}

// OperationStats aggregates executed operations inside the window.
type OperationStats struct {
	Total       int            `json:"total"`
	Successful  int            `json:"successful"`
	Failed      int            `json:"failed"`
	ByKind      map[string]int `json:"by_kind,omitempty"`
	AvgSyncTime time.Duration  `json:"avg_sync_time_ns"`
	TotalEnergy float64        `json:"total_energy"`
}

// Report summarizes coordination activity inside [From, To].
type Report struct {
	GeneratedAt     time.Time         `json:"generated_at"`
	From            time.Time         `json:"from"`
	To              time.Time         `json:"to"`
	State           State             `json:"state"`
	Tracked         int               `json:"tracked"`
	Matrix          Matrix            `json:"matrix"`
	Operations      OperationStats    `json:"operations"`
	Constructs      []ConstructStatus `json:"constructs"`
	Drift           []DriftEvent      `json:"drift,omitempty"`
	Recommendations []string          `json:"recommendations"`
}

// GenerateReport summarizes the operations and drift events retained
// in memory whose timestamps fall inside [from, to]. Zero bounds are
// open: a zero from reaches back to the earliest retained record, a
// zero to reaches the present.
func (c *Coordinator) GenerateReport(ctx context.Context, from, to time.Time) (Report, error) {
	_ = ctx

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Report{}, reality.NewValidationError("coordinator is closed", "")
	}
	state := c.state
	matrix := c.matrix.Clone()
	outcomes := filterOutcomes(c.outcomes, from, to)
	drift := filterDrift(c.drifts, from, to)
	c.mu.Unlock()

	snaps := c.snapshotConstructs()

	stats := OperationStats{Total: len(outcomes)}
	var syncTotal time.Duration
	byKind := make(map[string]int)
	for i := range outcomes {
		byKind[string(outcomes[i].Kind)]++
		if outcomes[i].Success {
			stats.Successful++
			stats.TotalEnergy += outcomes[i].EnergyUsed
			syncTotal += outcomes[i].SyncTime
		} else {
			stats.Failed++
		}
	}
	if len(byKind) > 0 {
		stats.ByKind = byKind
	}
	if stats.Successful > 0 {
		stats.AvgSyncTime = syncTotal / time.Duration(stats.Successful)
	}

	constructs := make([]ConstructStatus, len(snaps))
	for i, s := range snaps {
		constructs[i] = ConstructStatus{
			ID:                  s.id,
			Kind:                s.kind,
			Health:              s.health,
			Fingerprint:         reality.HealthFingerprint(s.health),
			LastSynchronization: s.lastSync,
		}
	}

	return Report{
		GeneratedAt:     c.clock.Now(),
		From:            from,
		To:              to,
		State:           state,
		Tracked:         len(snaps),
		Matrix:          matrix,
		Operations:      stats,
		Constructs:      constructs,
		Drift:           drift,
		Recommendations: buildRecommendations(stats, drift, state, len(snaps)),
	}, nil
}

// inWindow treats zero bounds as open.
func inWindow(at, from, to time.Time) bool {
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && at.After(to) {
		return false
	}
	return true
}

func filterOutcomes(all []OperationOutcome, from, to time.Time) []OperationOutcome {
	out := make([]OperationOutcome, 0, len(all))
	for i := range all {
		if inWindow(all[i].CompletedAt, from, to) {
			out = append(out, all[i])
		}
	}
	return out
}

func filterDrift(all []DriftEvent, from, to time.Time) []DriftEvent {
	out := make([]DriftEvent, 0, len(all))
	for i := range all {
		if inWindow(all[i].DetectedAt, from, to) {
			out = append(out, all[i])
		}
	}
	return out
}

// buildRecommendations derives deterministic operator guidance from
// the report's aggregates.
func buildRecommendations(stats OperationStats, drift []DriftEvent, state State, tracked int) []string {
	var recs []string
	if tracked < 2 {
		recs = append(recs, "track at least two constructs to enable synchronization")
	}
	if stats.Total > 0 && stats.Failed > stats.Successful {
		recs = append(recs, "most coordination attempts failed; inspect rejected and failed operations")
	}

	pairCounts := make(map[string]int)
	for i := range drift {
		pairCounts[drift[i].ConstructA+" and "+drift[i].ConstructB]++
	}
	pairs := make([]string, 0, len(pairCounts))
	for pair, n := range pairCounts {
		if n >= 2 {
			pairs = append(pairs, pair)
		}
	}
	sort.Strings(pairs)
	for _, pair := range pairs {
		recs = append(recs, "increase synchronization frequency between "+pair)
	}

	if state == StateDesynchronizing || state == StateFailed {
		recs = append(recs, "run a full synchronization round; coordinator state is "+string(state))
	}
	if len(recs) == 0 {
		recs = append(recs, "synchronization healthy; no action required")
	}
	return recs
}
