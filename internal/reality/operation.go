package reality

import "time"

// OperationKind names a class of cross-construct synchronization work.
type OperationKind string

const (
	OpStateSync          OperationKind = "stateSync"
	OpDataTransfer       OperationKind = "dataTransfer"
	OpEventPropagation   OperationKind = "eventPropagation"
	OpCoherenceAlignment OperationKind = "coherenceAlignment"
	OpTemporalSync       OperationKind = "temporalSync"
	OpDimensionalAlign   OperationKind = "dimensionalAlign"
)

// Priority orders operations in the coordination queue.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank returns the queue rank of p. Lower ranks execute first; unknown
// priorities sort after low rather than failing.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Operation is one unit of synchronization work between two constructs.
type Operation struct {
	ID        string        `json:"id"`
	Kind      OperationKind `json:"kind"`
	SourceID  string        `json:"source_id"`
	TargetID  string        `json:"target_id"`
	Priority  Priority      `json:"priority"`
	Payload   Object        `json:"payload"`
	CreatedAt time.Time     `json:"created_at"`
	Deadline  time.Time     `json:"deadline"`
}

// Validate checks an operation's structural invariants against now.
// A zero Deadline means no deadline. Violations return VALIDATION_FAILED;
// expired or otherwise invalid operations must never execute.
func (o Operation) Validate(now time.Time) error {
	switch {
	case o.ID == "":
		return NewValidationError("operation id must not be blank", "")
	case o.SourceID == "":
		return opValidationError(o.ID, "source id must not be blank")
	case o.TargetID == "":
		return opValidationError(o.ID, "target id must not be blank")
	case o.SourceID == o.TargetID:
		return opValidationError(o.ID, "source and target must differ")
	case len(o.Payload) == 0:
		return opValidationError(o.ID, "payload must not be empty")
	case !o.Deadline.IsZero() && o.Deadline.Before(now):
		return opValidationError(o.ID, "deadline has expired")
	}
	return nil
}

// Expired reports whether the operation's deadline has passed.
func (o Operation) Expired(now time.Time) bool {
	return !o.Deadline.IsZero() && o.Deadline.Before(now)
}

// Endpoints returns the two construct ids touched by the operation.
func (o Operation) Endpoints() (string, string) {
	return o.SourceID, o.TargetID
}
