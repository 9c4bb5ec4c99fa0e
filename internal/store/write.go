package store

import (
	"context"
	"fmt"

	"github.com/starwell/coherence/internal/reality"
	"github.com/starwell/coherence/internal/stabilize"
	"github.com/starwell/coherence/internal/synchro"
)

// SaveConstruct upserts the current snapshot of a construct. The
// constructs table holds one row per construct: registration inserts
// it and every later stabilization, adaptation, or synchronization
// overwrites it in place.
//
// Implements engine.Store.
func (s *Store) SaveConstruct(ctx context.Context, c *reality.Construct) error {
	healthJSON, err := marshalHealth(c.Health)
	if err != nil {
		return fmt.Errorf("save construct: %w", err)
	}
	anchorsJSON, err := marshalAnchors(c.Anchors)
	if err != nil {
		return fmt.Errorf("save construct: %w", err)
	}
	nodesJSON, err := marshalNodes(c.Nodes)
	if err != nil {
		return fmt.Errorf("save construct: %w", err)
	}
	matrixJSON, err := marshalMatrix(c.ConnMatrix)
	if err != nil {
		return fmt.Errorf("save construct: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO constructs
		(id, kind, health, anchors, nodes, conn_matrix, last_stabilization_ns, last_synchronization_ns, updated_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind                    = excluded.kind,
			health                  = excluded.health,
			anchors                 = excluded.anchors,
			nodes                   = excluded.nodes,
			conn_matrix             = excluded.conn_matrix,
			last_stabilization_ns   = excluded.last_stabilization_ns,
			last_synchronization_ns = excluded.last_synchronization_ns,
			updated_at_ns           = excluded.updated_at_ns
	`,
		c.ID,
		string(c.Kind),
		healthJSON,
		anchorsJSON,
		nodesJSON,
		matrixJSON,
		timeToNS(c.LastStabilization),
		timeToNS(c.LastSynchronization),
		s.clock.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save construct: %w", err)
	}

	return nil
}

// SaveResult appends one stabilization result to the run log. The log
// is append-only; identical results from separate runs each get their
// own row.
//
// Implements engine.Store.
func (s *Store) SaveResult(ctx context.Context, res stabilize.Result) error {
	detail, err := marshalResultDetail(res)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO stabilization_results
		(construct_id, plan_id, final_stability, valid, detail, completed_at_ns)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		res.ConstructID,
		res.PlanID,
		res.FinalStability,
		res.Validation.Valid,
		detail,
		timeToNS(res.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	return nil
}

// RecordOperation journals one coordination outcome.
// Uses ON CONFLICT(operation_id) DO NOTHING for idempotency - a retried
// journal write for the same operation is silently ignored.
//
// Implements synchro.Journal.
func (s *Store) RecordOperation(ctx context.Context, out synchro.OperationOutcome) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_operations
		(operation_id, kind, source_id, target_id, priority, success, drift, energy_used, sync_time_ns, payload_hash, error, completed_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(operation_id) DO NOTHING
	`,
		out.OperationID,
		string(out.Kind),
		out.SourceID,
		out.TargetID,
		string(out.Priority),
		out.Success,
		out.Drift,
		out.EnergyUsed,
		int64(out.SyncTime),
		out.PayloadHash,
		out.Error,
		timeToNS(out.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("record operation: %w", err)
	}

	return nil
}

// RecordDrift journals one drift event.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
//
// Implements synchro.Journal.
func (s *Store) RecordDrift(ctx context.Context, ev synchro.DriftEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drift_events
		(id, construct_a, construct_b, kind, magnitude, direction, detected_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		ev.ID,
		ev.ConstructA,
		ev.ConstructB,
		ev.Kind,
		ev.Magnitude,
		ev.Direction,
		timeToNS(ev.DetectedAt),
	)
	if err != nil {
		return fmt.Errorf("record drift: %w", err)
	}

	return nil
}
