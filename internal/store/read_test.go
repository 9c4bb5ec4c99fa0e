package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/starwell/coherence/internal/reality"
)

func TestLoadConstruct_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	c := createTestConstruct("alpha")

	if err := s.SaveConstruct(context.Background(), c); err != nil {
		t.Fatalf("SaveConstruct() failed: %v", err)
	}

	got, err := s.LoadConstruct(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("LoadConstruct() failed: %v", err)
	}

	if got.ID != c.ID {
		t.Errorf("ID = %q, want %q", got.ID, c.ID)
	}
	if got.Kind != c.Kind {
		t.Errorf("Kind = %q, want %q", got.Kind, c.Kind)
	}
	if got.Health != c.Health {
		t.Errorf("Health = %+v, want %+v", got.Health, c.Health)
	}

	if len(got.Anchors) != 1 {
		t.Fatalf("len(Anchors) = %d, want 1", len(got.Anchors))
	}
	anchor := got.Anchors[0]
	if anchor.ID != "alpha-a1" || anchor.Stability != 0.7 || anchor.Influence != 0.4 {
		t.Errorf("anchor = %+v, want id alpha-a1 stability 0.7 influence 0.4", anchor)
	}

	if len(got.Nodes) != 2 {
		t.Fatalf("len(Nodes) = %d, want 2", len(got.Nodes))
	}
	n1 := got.Nodes[0]
	if n1.ID != "alpha-n1" {
		t.Errorf("node id = %q, want alpha-n1", n1.ID)
	}
	if n1.Kind != reality.NodePrimary {
		t.Errorf("node kind = %q, want %q", n1.Kind, reality.NodePrimary)
	}
	if n1.Stability != 0.9 || n1.Capacity != 120 {
		t.Errorf("node stability/capacity = %v/%v, want 0.9/120", n1.Stability, n1.Capacity)
	}
	if len(n1.Connections) != 1 {
		t.Fatalf("len(Connections) = %d, want 1", len(n1.Connections))
	}
	conn := n1.Connections[0]
	if conn.TargetID != "alpha-n2" || conn.Strength != 0.25 {
		t.Errorf("connection = %+v, want target alpha-n2 strength 0.25", conn)
	}
	if conn.Latency != 30*time.Millisecond {
		t.Errorf("connection latency = %v, want 30ms", conn.Latency)
	}
	if len(n1.ActiveAlgorithms) != 1 || n1.ActiveAlgorithms[0] != reality.AlgAdaptiveCompensation {
		t.Errorf("active algorithms = %v, want [adaptiveCompensation]", n1.ActiveAlgorithms)
	}
	if !n1.LastActivity.Equal(storeStart) {
		t.Errorf("node LastActivity = %v, want %v", n1.LastActivity, storeStart)
	}

	if len(got.ConnMatrix) != 2 {
		t.Fatalf("len(ConnMatrix) = %d, want 2", len(got.ConnMatrix))
	}
	for i := range got.ConnMatrix {
		for j := range got.ConnMatrix[i] {
			if got.ConnMatrix[i][j] != c.ConnMatrix[i][j] {
				t.Errorf("ConnMatrix[%d][%d] = %v, want %v", i, j, got.ConnMatrix[i][j], c.ConnMatrix[i][j])
			}
		}
	}

	if !got.LastStabilization.Equal(c.LastStabilization) {
		t.Errorf("LastStabilization = %v, want %v", got.LastStabilization, c.LastStabilization)
	}
	if !got.LastSynchronization.IsZero() {
		t.Errorf("LastSynchronization = %v, want zero", got.LastSynchronization)
	}

	// The loaded snapshot still satisfies the structural invariants.
	if err := got.Validate(); err != nil {
		t.Errorf("loaded construct failed validation: %v", err)
	}
}

func TestLoadConstruct_Missing(t *testing.T) {
	s := createTestStore(t)

	_, err := s.LoadConstruct(context.Background(), "ghost")
	if err == nil {
		t.Fatal("expected error for missing construct, got nil")
	}
	if !reality.IsNotFound(err) {
		t.Errorf("error = %v, want NOT_FOUND", err)
	}
}

func TestConstructs_SortedIDs(t *testing.T) {
	s := createTestStore(t)

	ids, err := s.Constructs(context.Background())
	if err != nil {
		t.Fatalf("Constructs() on empty store failed: %v", err)
	}
	if ids == nil {
		t.Error("ids is nil, want empty slice")
	}
	if len(ids) != 0 {
		t.Errorf("len(ids) = %d, want 0", len(ids))
	}

	for _, id := range []string{"gamma", "alpha", "beta"} {
		if err := s.SaveConstruct(context.Background(), createTestConstruct(id)); err != nil {
			t.Fatalf("SaveConstruct(%q) failed: %v", id, err)
		}
	}

	ids, err = s.Constructs(context.Background())
	if err != nil {
		t.Fatalf("Constructs() failed: %v", err)
	}
	want := []string{"alpha", "beta", "gamma"}
	if len(ids) != len(want) {
		t.Fatalf("len(ids) = %d, want %d", len(ids), len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestHistory_NewestFirst(t *testing.T) {
	s := createTestStore(t)

	for i, planID := range []string{"plan-1", "plan-2", "plan-3"} {
		res := createTestResult("alpha", planID, 0.6, storeStart.Add(time.Duration(i)*time.Minute))
		if err := s.SaveResult(context.Background(), res); err != nil {
			t.Fatalf("SaveResult(%q) failed: %v", planID, err)
		}
	}
	// A result for another construct must not leak into alpha's history.
	if err := s.SaveResult(context.Background(), createTestResult("beta", "plan-b", 0.8, storeStart)); err != nil {
		t.Fatalf("SaveResult(beta) failed: %v", err)
	}

	results, err := s.History(context.Background(), "alpha", 0)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	wantOrder := []string{"plan-3", "plan-2", "plan-1"}
	for i, want := range wantOrder {
		if results[i].PlanID != want {
			t.Errorf("results[%d].PlanID = %q, want %q", i, results[i].PlanID, want)
		}
	}

	limited, err := s.History(context.Background(), "alpha", 2)
	if err != nil {
		t.Fatalf("History(limit=2) failed: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("len(limited) = %d, want 2", len(limited))
	}
	if limited[0].PlanID != "plan-3" || limited[1].PlanID != "plan-2" {
		t.Errorf("limited order = [%q, %q], want [plan-3, plan-2]", limited[0].PlanID, limited[1].PlanID)
	}

	// Detail round-trip keeps the nested step results intact.
	newest := results[0]
	if newest.ConstructID != "alpha" {
		t.Errorf("ConstructID = %q, want alpha", newest.ConstructID)
	}
	if newest.ProcessingTime != 800*time.Millisecond {
		t.Errorf("ProcessingTime = %v, want 800ms", newest.ProcessingTime)
	}
	if len(newest.StepResults) != 1 {
		t.Fatalf("len(StepResults) = %d, want 1", len(newest.StepResults))
	}
	if newest.StepResults[0].Algorithm != reality.AlgCoherenceReinforcement {
		t.Errorf("step algorithm = %q, want coherenceReinforcement", newest.StepResults[0].Algorithm)
	}
	if !newest.Validation.Valid {
		t.Error("Validation.Valid = false, want true")
	}
	if !newest.CompletedAt.Equal(storeStart.Add(2 * time.Minute)) {
		t.Errorf("CompletedAt = %v, want %v", newest.CompletedAt, storeStart.Add(2*time.Minute))
	}

	empty, err := s.History(context.Background(), "ghost", 0)
	if err != nil {
		t.Fatalf("History(ghost) failed: %v", err)
	}
	if empty == nil {
		t.Error("history is nil, want empty slice")
	}
	if len(empty) != 0 {
		t.Errorf("len(history) = %d, want 0", len(empty))
	}
}

func TestOperations_Window(t *testing.T) {
	s := createTestStore(t)

	times := []time.Time{storeStart, storeStart.Add(time.Hour), storeStart.Add(2 * time.Hour)}
	for i, at := range times {
		out := createTestOutcome(fmt.Sprintf("op-%c", 'a'+i), at)
		if err := s.RecordOperation(context.Background(), out); err != nil {
			t.Fatalf("RecordOperation(%d) failed: %v", i, err)
		}
	}

	all, err := s.Operations(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Operations() failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
	if all[0].OperationID != "op-a" || all[2].OperationID != "op-c" {
		t.Errorf("order = [%q ... %q], want oldest-first [op-a ... op-c]", all[0].OperationID, all[2].OperationID)
	}

	// Round-trip of the typed fields.
	got := all[0]
	if got.Kind != reality.OpStateSync {
		t.Errorf("Kind = %q, want stateSync", got.Kind)
	}
	if got.Priority != reality.PriorityHigh {
		t.Errorf("Priority = %q, want high", got.Priority)
	}
	if got.SyncTime != 130*time.Millisecond {
		t.Errorf("SyncTime = %v, want 130ms", got.SyncTime)
	}
	if got.Drift != 0.3 {
		t.Errorf("Drift = %v, want 0.3", got.Drift)
	}
	if want := reality.MustPayloadHash(reality.Object{"mode": reality.String("full")}); got.PayloadHash != want {
		t.Errorf("PayloadHash = %q, want %q", got.PayloadHash, want)
	}
	if !got.CompletedAt.Equal(storeStart) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, storeStart)
	}

	late, err := s.Operations(context.Background(), storeStart.Add(time.Hour), time.Time{})
	if err != nil {
		t.Fatalf("Operations(from) failed: %v", err)
	}
	if len(late) != 2 {
		t.Errorf("len(late) = %d, want 2 (bounds inclusive)", len(late))
	}

	early, err := s.Operations(context.Background(), time.Time{}, storeStart.Add(time.Hour))
	if err != nil {
		t.Fatalf("Operations(to) failed: %v", err)
	}
	if len(early) != 2 {
		t.Errorf("len(early) = %d, want 2 (bounds inclusive)", len(early))
	}

	middle, err := s.Operations(context.Background(), storeStart.Add(time.Hour), storeStart.Add(time.Hour))
	if err != nil {
		t.Fatalf("Operations(from=to) failed: %v", err)
	}
	if len(middle) != 1 {
		t.Fatalf("len(middle) = %d, want 1", len(middle))
	}
	if middle[0].OperationID != "op-b" {
		t.Errorf("middle id = %q, want op-b", middle[0].OperationID)
	}

	none, err := s.Operations(context.Background(), storeStart.Add(3*time.Hour), time.Time{})
	if err != nil {
		t.Fatalf("Operations(empty window) failed: %v", err)
	}
	if none == nil {
		t.Error("outcomes is nil, want empty slice")
	}
	if len(none) != 0 {
		t.Errorf("len(none) = %d, want 0", len(none))
	}
}

func TestDriftEvents_Window(t *testing.T) {
	s := createTestStore(t)

	if err := s.RecordDrift(context.Background(), createTestDrift("drift-1", storeStart)); err != nil {
		t.Fatalf("RecordDrift(drift-1) failed: %v", err)
	}
	if err := s.RecordDrift(context.Background(), createTestDrift("drift-2", storeStart.Add(time.Hour))); err != nil {
		t.Fatalf("RecordDrift(drift-2) failed: %v", err)
	}

	all, err := s.DriftEvents(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("DriftEvents() failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(all) = %d, want 2", len(all))
	}

	got := all[0]
	if got.ID != "drift-1" {
		t.Errorf("ID = %q, want drift-1", got.ID)
	}
	if got.ConstructA != "alpha" || got.ConstructB != "beta" {
		t.Errorf("pair = %q/%q, want alpha/beta", got.ConstructA, got.ConstructB)
	}
	if got.Kind != "coherence" {
		t.Errorf("Kind = %q, want coherence", got.Kind)
	}
	if got.Magnitude != 0.3 {
		t.Errorf("Magnitude = %v, want 0.3", got.Magnitude)
	}
	if got.Direction != "alpha" {
		t.Errorf("Direction = %q, want alpha", got.Direction)
	}
	if !got.DetectedAt.Equal(storeStart) {
		t.Errorf("DetectedAt = %v, want %v", got.DetectedAt, storeStart)
	}

	recent, err := s.DriftEvents(context.Background(), storeStart.Add(time.Minute), time.Time{})
	if err != nil {
		t.Fatalf("DriftEvents(from) failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("len(recent) = %d, want 1", len(recent))
	}
	if recent[0].ID != "drift-2" {
		t.Errorf("recent id = %q, want drift-2", recent[0].ID)
	}
}
