package sink

import (
	"context"
	"time"

	"github.com/starwell/coherence/internal/reality"
)

// SyncIssue kinds.
const (
	IssueDrift               = "drift"
	IssueDesynchronized      = "desynchronized"
	IssueCoordinationFailure = "coordination_failure"
)

// Event is a notable occurrence published by the stabilization engine
// or the synchronization coordinator.
type Event interface {
	// EventKind returns a stable identifier for the event type.
	EventKind() string
}

// StabilityAlert reports a construct whose assessed risk crossed the
// alerting bar during analysis.
type StabilityAlert struct {
	ConstructID string
	Risk        reality.RiskLevel
	Overall     float64 // combined instability measure in [0,1]
	Message     string
	At          time.Time
}

// EventKind implements Event.
func (StabilityAlert) EventKind() string { return "stability_alert" }

// SyncIssue reports drift between a construct pair or a failed
// coordination round.
type SyncIssue struct {
	ConstructA string
	ConstructB string
	Kind       string // one of the Issue* constants
	Magnitude  float64
	Message    string
	At         time.Time
}

// EventKind implements Event.
func (SyncIssue) EventKind() string { return "sync_issue" }

// Sink receives events. Implementations must be safe for concurrent
// use.
type Sink interface {
	Publish(ctx context.Context, ev Event)
}

// Nop discards every event.
type Nop struct{}

// Publish implements Sink.
func (Nop) Publish(context.Context, Event) {}

// Fanout publishes each event to every wrapped sink in order.
type Fanout []Sink

// Publish implements Sink.
func (f Fanout) Publish(ctx context.Context, ev Event) {
	for _, s := range f {
		s.Publish(ctx, ev)
	}
}
