package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starwell/coherence/internal/reality"
	"github.com/starwell/coherence/internal/stabilize"
	"github.com/starwell/coherence/internal/synchro"
)

// LoadConstruct retrieves the stored snapshot of one construct.
// A missing row maps to the NOT_FOUND taxonomy, not sql.ErrNoRows.
func (s *Store) LoadConstruct(ctx context.Context, id string) (*reality.Construct, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, health, anchors, nodes, conn_matrix, last_stabilization_ns, last_synchronization_ns
		FROM constructs
		WHERE id = ?
	`, id)

	var (
		c           reality.Construct
		kind        string
		healthJSON  string
		anchorsJSON string
		nodesJSON   string
		matrixJSON  string
		stabNS      int64
		syncNS      int64
	)
	err := row.Scan(&c.ID, &kind, &healthJSON, &anchorsJSON, &nodesJSON, &matrixJSON, &stabNS, &syncNS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reality.NewNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("load construct: %w", err)
	}

	c.Kind = reality.ConstructKind(kind)
	if c.Health, err = unmarshalHealth(healthJSON); err != nil {
		return nil, fmt.Errorf("load construct %s: %w", id, err)
	}
	if c.Anchors, err = unmarshalAnchors(anchorsJSON); err != nil {
		return nil, fmt.Errorf("load construct %s: %w", id, err)
	}
	if c.Nodes, err = unmarshalNodes(nodesJSON); err != nil {
		return nil, fmt.Errorf("load construct %s: %w", id, err)
	}
	if c.ConnMatrix, err = unmarshalMatrix(matrixJSON); err != nil {
		return nil, fmt.Errorf("load construct %s: %w", id, err)
	}
	c.LastStabilization = nsToTime(stabNS)
	c.LastSynchronization = nsToTime(syncNS)

	return &c, nil
}

// Constructs returns the ids of every stored construct in binary
// collation order.
func (s *Store) Constructs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM constructs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query constructs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan construct id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate constructs: %w", err)
	}

	if ids == nil {
		ids = []string{}
	}

	return ids, nil
}

// History returns the stabilization results for a construct,
// newest-first by insertion order. A limit <= 0 returns the full log.
func (s *Store) History(ctx context.Context, constructID string, limit int) ([]stabilize.Result, error) {
	if limit <= 0 {
		limit = -1 // SQLite: LIMIT -1 means unlimited
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT detail FROM stabilization_results
		WHERE construct_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, constructID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var results []stabilize.Result
	for rows.Next() {
		var detail string
		if err := rows.Scan(&detail); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		res, err := unmarshalResultDetail(detail)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	if results == nil {
		results = []stabilize.Result{}
	}

	return results, nil
}

// Operations returns journaled coordination outcomes whose completion
// time falls inside [from, to], oldest-first by insertion order. A zero
// bound is open.
func (s *Store) Operations(ctx context.Context, from, to time.Time) ([]synchro.OperationOutcome, error) {
	query := `
		SELECT operation_id, kind, source_id, target_id, priority, success, drift, energy_used, sync_time_ns, payload_hash, error, completed_at_ns
		FROM sync_operations`
	where, args := timeWindow("completed_at_ns", from, to)
	query += where + `
		ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	var outcomes []synchro.OperationOutcome
	for rows.Next() {
		out, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, out)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}

	if outcomes == nil {
		outcomes = []synchro.OperationOutcome{}
	}

	return outcomes, nil
}

// DriftEvents returns journaled drift events whose detection time falls
// inside [from, to], oldest-first by insertion order. A zero bound is
// open.
func (s *Store) DriftEvents(ctx context.Context, from, to time.Time) ([]synchro.DriftEvent, error) {
	query := `
		SELECT id, construct_a, construct_b, kind, magnitude, direction, detected_at_ns
		FROM drift_events`
	where, args := timeWindow("detected_at_ns", from, to)
	query += where + `
		ORDER BY rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query drift events: %w", err)
	}
	defer rows.Close()

	var events []synchro.DriftEvent
	for rows.Next() {
		var (
			ev         synchro.DriftEvent
			detectedNS int64
		)
		if err := rows.Scan(&ev.ID, &ev.ConstructA, &ev.ConstructB, &ev.Kind, &ev.Magnitude, &ev.Direction, &detectedNS); err != nil {
			return nil, fmt.Errorf("scan drift event: %w", err)
		}
		ev.DetectedAt = nsToTime(detectedNS)
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drift events: %w", err)
	}

	if events == nil {
		events = []synchro.DriftEvent{}
	}

	return events, nil
}

// timeWindow builds the WHERE clause for an inclusive UnixNano window.
func timeWindow(column string, from, to time.Time) (string, []any) {
	var conds []string
	var args []any
	if !from.IsZero() {
		conds = append(conds, column+" >= ?")
		args = append(args, from.UnixNano())
	}
	if !to.IsZero() {
		conds = append(conds, column+" <= ?")
		args = append(args, to.UnixNano())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "\n\t\tWHERE " + strings.Join(conds, " AND "), args
}

// scanOperation scans a row into an OperationOutcome.
func scanOperation(rows *sql.Rows) (synchro.OperationOutcome, error) {
	var (
		out         synchro.OperationOutcome
		kind        string
		priority    string
		syncNS      int64
		completedNS int64
	)
	if err := rows.Scan(
		&out.OperationID, &kind, &out.SourceID, &out.TargetID, &priority,
		&out.Success, &out.Drift, &out.EnergyUsed, &syncNS, &out.PayloadHash, &out.Error, &completedNS,
	); err != nil {
		return synchro.OperationOutcome{}, fmt.Errorf("scan operation: %w", err)
	}

	out.Kind = reality.OperationKind(kind)
	out.Priority = reality.Priority(priority)
	out.SyncTime = time.Duration(syncNS)
	out.CompletedAt = nsToTime(completedNS)

	return out, nil
}
