package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/starwell/coherence/internal/reality"
	"github.com/starwell/coherence/internal/sink"
	"github.com/starwell/coherence/internal/stabilize"
)

// Analyzer detects instability patterns in a construct.
type Analyzer interface {
	Analyze(c *reality.Construct) stabilize.Analysis
}

// Planner turns detected patterns into an ordered remediation plan.
type Planner interface {
	BuildPlan(constructID string, patterns []reality.Pattern) reality.Plan
}

// Executor runs a remediation plan against a construct.
type Executor interface {
	Execute(ctx context.Context, c *reality.Construct, plan reality.Plan) (stabilize.Result, error)
}

// Adapter reacts to environmental changes against a construct's node
// network.
type Adapter interface {
	Adapt(ctx context.Context, c *reality.Construct, changes []reality.Change) (stabilize.AdaptationResult, error)
}

// Monitor computes stability snapshots of a node network.
type Monitor interface {
	Snapshot(nodes []*reality.Node, now time.Time) reality.StabilityMetrics
}

// Store persists constructs and stabilization results.
// Implementations must be safe for concurrent use.
type Store interface {
	SaveConstruct(ctx context.Context, c *reality.Construct) error
	SaveResult(ctx context.Context, res stabilize.Result) error
}

// Deps carries the engine's collaborators.
//
// Nil pipeline fields (Analyzer, Planner, Executor, Adapter, Monitor)
// fall back to defaults built from the engine config. A nil Clock uses
// the system clock, nil IDs a UUIDv7 generator, nil Sink a nop sink,
// and a nil Logger the process default. A nil Store stays nil and
// disables persistence.
type Deps struct {
	Analyzer Analyzer
	Planner  Planner
	Executor Executor
	Adapter  Adapter
	Monitor  Monitor
	Store    Store
	Sink     sink.Sink
	Clock    reality.Clock
	IDs      reality.IDGenerator
	Logger   *slog.Logger
}
