package synchro

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/starwell/coherence/internal/reality"
	"github.com/starwell/coherence/internal/sink"
)

// OperationOutcome records the execution of one operation. Drift is
// the pre-sync magnitude between the endpoints; SyncTime is the
// modeled duration, scaling with drift. PayloadHash is the
// content-addressed identity of the operation's payload, so journal
// rows stay traceable to exactly what was delivered.
type OperationOutcome struct {
	OperationID string                `json:"operation_id"`
	Kind        reality.OperationKind `json:"kind"`
	SourceID    string                `json:"source_id"`
	TargetID    string                `json:"target_id"`
	Priority    reality.Priority      `json:"priority"`
	Success     bool                  `json:"success"`
	Drift       float64               `json:"drift"`
	EnergyUsed  float64               `json:"energy_used"`
	SyncTime    time.Duration         `json:"sync_time_ns"`
	PayloadHash string                `json:"payload_hash,omitempty"`
	Error       string                `json:"error,omitempty"`
	CompletedAt time.Time             `json:"completed_at"`
}

// RejectedOperation names an operation refused at enqueue time.
type RejectedOperation struct {
	OperationID string `json:"operation_id"`
	Reason      string `json:"reason"`
}

// CoordinationResult aggregates one coordination round.
//
// Submitted counts the input operations; Coordinated counts the unique
// valid operations that executed (duplicates merge, rejects are
// excluded). Successful and Failed split Coordinated. Strength is
// Successful over Coordinated plus rejected, 0 when nothing was
// attempted.
type CoordinationResult struct {
	Submitted        int                 `json:"submitted"`
	Coordinated      int                 `json:"coordinated"`
	Successful       int                 `json:"successful"`
	Failed           int                 `json:"failed"`
	Strength         float64             `json:"strength"`
	EnergyConsumed   float64             `json:"energy_consumed"`
	CoordinationTime time.Duration       `json:"coordination_time_ns"`
	Outcomes         []OperationOutcome  `json:"outcomes"`
	Rejected         []RejectedOperation `json:"rejected,omitempty"`
	CompletedAt      time.Time           `json:"completed_at"`
}

// CoordinateOperations validates, merges, and executes a batch of
// operations. Invalid operations are rejected with explicit reasons,
// never silently dropped. Valid operations execute in priority order
// (critical first, FIFO within a class) on the worker pool; duplicate
// IDs within the batch merge into one execution. Deadlines are checked
// again immediately before execution, so an operation that expired
// while queued fails rather than running late.
//
// The returned error is non-nil only for structural failures: an empty
// batch (OPERATION_QUEUE_EMPTY), a closed coordinator, or cancellation
// mid-round. Per-operation failures ride in the result.
func (c *Coordinator) CoordinateOperations(ctx context.Context, ops []reality.Operation) (CoordinationResult, error) {
	if len(ops) == 0 {
		return CoordinationResult{}, reality.NewQueueEmptyError("no operations to coordinate")
	}

	c.roundMu.Lock()
	defer c.roundMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return CoordinationResult{}, reality.NewValidationError("coordinator is closed", "")
	}
	c.mu.Unlock()

	start := c.clock.Now()

	var rejected []RejectedOperation
	for _, op := range ops {
		if err := c.queue.Enqueue(op, start); err != nil {
			rejected = append(rejected, RejectedOperation{
				OperationID: op.ID,
				Reason:      rejectionReason(err),
			})
		}
	}

	batch := c.queue.Drain()
	outcomes, execErr := c.executeBatch(ctx, batch)

	res := CoordinationResult{
		Submitted:   len(ops),
		Coordinated: len(batch),
		Outcomes:    outcomes,
		Rejected:    rejected,
	}
	for i := range outcomes {
		if outcomes[i].Success {
			res.Successful++
			res.EnergyConsumed += outcomes[i].EnergyUsed
		} else {
			res.Failed++
		}
		if c.journal != nil {
			if err := c.journal.RecordOperation(ctx, outcomes[i]); err != nil {
				c.log.Error("journal operation record failed",
					"error", err, "operation", outcomes[i].OperationID)
			}
		}
	}
	if total := res.Coordinated + len(rejected); total > 0 {
		res.Strength = float64(res.Successful) / float64(total)
	}
	res.CompletedAt = c.clock.Now()
	res.CoordinationTime = res.CompletedAt.Sub(start)

	c.mu.Lock()
	c.outcomes = append(c.outcomes, outcomes...)
	if limit := c.cfg.HistoryLimit; limit > 0 && len(c.outcomes) > limit {
		c.outcomes = append([]OperationOutcome(nil), c.outcomes[len(c.outcomes)-limit:]...)
	}
	c.mu.Unlock()

	c.log.Info("coordination round finished",
		"submitted", res.Submitted,
		"coordinated", res.Coordinated,
		"successful", res.Successful,
		"failed", res.Failed,
		"rejected", len(rejected),
		"strength", res.Strength)
	return res, execErr
}

func rejectionReason(err error) string {
	var re *reality.Error
	if errors.As(err, &re) {
		return re.Message
	}
	return err.Error()
}

// executeBatch runs operations on a bounded worker pool. Operations on
// the same construct pair share a lane and run in queue order; lanes
// run concurrently, with per-construct locks serializing lanes that
// share one endpoint. Outcome order matches batch order regardless of
// completion interleaving.
func (c *Coordinator) executeBatch(ctx context.Context, batch []reality.Operation) ([]OperationOutcome, error) {
	outcomes := make([]OperationOutcome, len(batch))
	if len(batch) == 0 {
		return outcomes, nil
	}

	type lane struct{ indexes []int }
	laneOf := make(map[string]*lane)
	var order []*lane
	for i := range batch {
		a, b := batch[i].Endpoints()
		if b < a {
			a, b = b, a
		}
		key := a + "\x00" + b
		ln := laneOf[key]
		if ln == nil {
			ln = &lane{}
			laneOf[key] = ln
			order = append(order, ln)
		}
		ln.indexes = append(ln.indexes, i)
	}

	workers := c.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(order) {
		workers = len(order)
	}

	lanes := make(chan *lane)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ln := range lanes {
				for _, i := range ln.indexes {
					outcomes[i] = c.executeOperation(ctx, batch[i])
				}
			}
		}()
	}
	for _, ln := range order {
		lanes <- ln
	}
	close(lanes)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return outcomes, fmt.Errorf("coordination interrupted: %w", err)
	}
	return outcomes, nil
}

// executeOperation runs one operation end to end: cancellation and
// deadline re-checks, payload hashing, endpoint lookup, locked health
// convergence, and accounting.
func (c *Coordinator) executeOperation(ctx context.Context, op reality.Operation) OperationOutcome {
	out := OperationOutcome{
		OperationID: op.ID,
		Kind:        op.Kind,
		SourceID:    op.SourceID,
		TargetID:    op.TargetID,
		Priority:    op.Priority,
		CompletedAt: c.clock.Now(),
	}

	if ctx.Err() != nil {
		out.Error = "coordination cancelled before execution"
		return out
	}
	if op.Expired(c.clock.Now()) {
		out.Error = "deadline expired while queued"
		return out
	}

	hash, err := reality.PayloadHash(op.Payload)
	if err != nil {
		out.Error = fmt.Sprintf("payload has no canonical form: %v", err)
		return out
	}
	out.PayloadHash = hash

	c.mu.Lock()
	source := c.realities[op.SourceID]
	target := c.realities[op.TargetID]
	sourceLock := c.locks[op.SourceID]
	targetLock := c.locks[op.TargetID]
	c.mu.Unlock()

	switch {
	case source == nil:
		out.Error = fmt.Sprintf("source construct %s is not tracked", op.SourceID)
		return out
	case target == nil:
		out.Error = fmt.Sprintf("target construct %s is not tracked", op.TargetID)
		return out
	}

	unlock := lockOrdered(op.SourceID, sourceLock, op.TargetID, targetLock)
	defer unlock()

	drift := driftMagnitude(source.Health, target.Health, c.cfg.MaxDrift)
	record := executedOp{
		op:           op,
		sourceBefore: source.Health,
		targetBefore: target.Health,
		sourceSync:   source.LastSynchronization,
		targetSync:   target.LastSynchronization,
	}

	if err := applyOperation(op.Kind, source, target, c.cfg.ConvergenceRate); err != nil {
		out.Error = err.Error()
		return out
	}

	now := c.clock.Now()
	source.LastSynchronization = now
	target.LastSynchronization = now
	record.at = now

	out.Success = true
	out.Drift = drift
	out.EnergyUsed = c.cfg.EnergyBase + c.cfg.EnergyPerDrift*drift
	out.SyncTime = time.Duration(math.Round((1 + drift) * float64(c.cfg.BaseSyncTime)))
	out.CompletedAt = now

	c.mu.Lock()
	c.history = append(c.history, record)
	if limit := c.cfg.HistoryLimit; limit > 0 && len(c.history) > limit {
		c.history = append([]executedOp(nil), c.history[len(c.history)-limit:]...)
	}
	c.mu.Unlock()

	c.log.Debug("operation executed",
		"operation", op.ID,
		"kind", string(op.Kind),
		"source", op.SourceID,
		"target", op.TargetID,
		"drift", drift)
	return out
}

// lockOrdered acquires two construct locks in sorted ID order so
// concurrent lanes can never deadlock on a reversed pair.
func lockOrdered(aID string, a *sync.Mutex, bID string, b *sync.Mutex) func() {
	if bID < aID {
		a, b = b, a
	}
	a.Lock()
	b.Lock()
	return func() {
		b.Unlock()
		a.Unlock()
	}
}

// applyOperation converges target health toward source health. State
// sync converges all five dimensions, the alignment kinds converge a
// single dimension, and the data movement kinds deliver payload
// without moving health.
func applyOperation(kind reality.OperationKind, source, target *reality.Construct, rate float64) error {
	s := source.Health
	t := &target.Health
	switch kind {
	case reality.OpStateSync:
		t.Stability += rate * (s.Stability - t.Stability)
		t.Coherence += rate * (s.Coherence - t.Coherence)
		t.DimensionalIntegrity += rate * (s.DimensionalIntegrity - t.DimensionalIntegrity)
		t.TemporalStability += rate * (s.TemporalStability - t.TemporalStability)
		t.Consistency += rate * (s.Consistency - t.Consistency)
	case reality.OpCoherenceAlignment:
		t.Coherence += rate * (s.Coherence - t.Coherence)
	case reality.OpTemporalSync:
		t.TemporalStability += rate * (s.TemporalStability - t.TemporalStability)
	case reality.OpDimensionalAlign:
		t.DimensionalIntegrity += rate * (s.DimensionalIntegrity - t.DimensionalIntegrity)
	case reality.OpDataTransfer, reality.OpEventPropagation:
		// Payload delivery only.
	default:
		return fmt.Errorf("unknown operation kind %q", kind)
	}
	t.Clamp()
	return nil
}

// RoundResult aggregates one full synchronization round.
type RoundResult struct {
	Requested    int                `json:"requested"`
	Synchronized int                `json:"synchronized"`
	Coordination CoordinationResult `json:"coordination"`
	CompletedAt  time.Time          `json:"completed_at"`
}

// SynchronizeRealities runs a full state-sync round across every
// tracked construct: one stateSync operation per ordered pair, with
// priority promoted to high for pairs whose measured drift reaches the
// configured bar. The round succeeds only if every tracked construct
// participates in at least one successful operation; otherwise the
// coordinator enters the failed state and a SYNCHRONIZATION_FAILED
// error reports the shortfall.
func (c *Coordinator) SynchronizeRealities(ctx context.Context) (RoundResult, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return RoundResult{}, reality.NewValidationError("coordinator is closed", "")
	}
	if len(c.realities) < 2 {
		c.mu.Unlock()
		return RoundResult{}, reality.NewValidationError("synchronization requires at least two tracked constructs", "")
	}
	c.setStateLocked(StateSynchronizing)
	c.rebuildMatrixLocked()
	c.mu.Unlock()

	snaps := c.snapshotConstructs()
	now := c.clock.Now()

	ops := make([]reality.Operation, 0, len(snaps)*(len(snaps)-1))
	for _, src := range snaps {
		fp := reality.HealthFingerprint(src.health)
		for _, dst := range snaps {
			if src.id == dst.id {
				continue
			}
			drift := driftMagnitude(src.health, dst.health, c.cfg.MaxDrift)
			prio := reality.PriorityMedium
			if drift >= c.cfg.HighDriftPriority {
				prio = reality.PriorityHigh
			}
			ops = append(ops, reality.Operation{
				ID:       c.ids.NewID(),
				Kind:     reality.OpStateSync,
				SourceID: src.id,
				TargetID: dst.id,
				Priority: prio,
				Payload: reality.Object{
					"mode":               reality.String("full"),
					"source_fingerprint": reality.String(fp),
				},
				CreatedAt: now,
				Deadline:  now.Add(c.cfg.SyncDeadline),
			})
		}
	}

	res, err := c.CoordinateOperations(ctx, ops)
	round := RoundResult{
		Requested:    len(snaps),
		Coordination: res,
		CompletedAt:  c.clock.Now(),
	}

	participated := make(map[string]bool, len(snaps))
	for i := range res.Outcomes {
		if res.Outcomes[i].Success {
			participated[res.Outcomes[i].SourceID] = true
			participated[res.Outcomes[i].TargetID] = true
		}
	}
	round.Synchronized = len(participated)

	if err != nil {
		c.mu.Lock()
		c.setStateLocked(StateFailed)
		c.mu.Unlock()
		return round, err
	}
	if round.Synchronized != round.Requested {
		c.mu.Lock()
		c.setStateLocked(StateFailed)
		c.mu.Unlock()
		detail := fmt.Sprintf("synchronized %d of %d constructs", round.Synchronized, round.Requested)
		c.events.Publish(ctx, sink.SyncIssue{
			Kind:    sink.IssueCoordinationFailure,
			Message: detail,
			At:      round.CompletedAt,
		})
		return round, reality.NewSynchronizationFailedError(detail, map[string]string{
			"requested":    strconv.Itoa(round.Requested),
			"synchronized": strconv.Itoa(round.Synchronized),
		})
	}

	c.mu.Lock()
	c.setStateLocked(StateSynchronized)
	c.mu.Unlock()
	c.log.Info("synchronization round complete",
		"constructs", round.Requested,
		"operations", res.Coordinated)
	return round, nil
}

// RollbackLastOperation reverses the most recently executed successful
// operation, restoring the exact pre-operation health and sync stamps
// of both endpoints. Returns OPERATION_QUEUE_EMPTY when nothing has
// executed.
func (c *Coordinator) RollbackLastOperation() (reality.Operation, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return reality.Operation{}, reality.NewValidationError("coordinator is closed", "")
	}
	if len(c.history) == 0 {
		c.mu.Unlock()
		return reality.Operation{}, reality.NewQueueEmptyError("no executed operations to roll back")
	}
	rec := c.history[len(c.history)-1]
	c.history = c.history[:len(c.history)-1]
	source := c.realities[rec.op.SourceID]
	target := c.realities[rec.op.TargetID]
	sourceLock := c.locks[rec.op.SourceID]
	targetLock := c.locks[rec.op.TargetID]
	c.mu.Unlock()

	if source == nil {
		return reality.Operation{}, reality.NewNotFound(rec.op.SourceID)
	}
	if target == nil {
		return reality.Operation{}, reality.NewNotFound(rec.op.TargetID)
	}

	unlock := lockOrdered(rec.op.SourceID, sourceLock, rec.op.TargetID, targetLock)
	source.Health = rec.sourceBefore
	source.LastSynchronization = rec.sourceSync
	target.Health = rec.targetBefore
	target.LastSynchronization = rec.targetSync
	unlock()

	c.log.Info("operation rolled back", "operation", rec.op.ID, "kind", string(rec.op.Kind))
	return rec.op, nil
}
