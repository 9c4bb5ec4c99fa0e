package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/starwell/coherence/internal/engine"
	"github.com/starwell/coherence/internal/reality"
	"github.com/starwell/coherence/internal/sink"
	"github.com/starwell/coherence/internal/stabilize"
	"github.com/starwell/coherence/internal/store"
	"github.com/starwell/coherence/internal/synchro"
	"github.com/starwell/coherence/internal/testutil"
)

// scenarioEpoch is the wall clock every scenario starts at. Combined
// with sequence ids and the in-memory store, it makes runs of the same
// scenario byte-identical.
var scenarioEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// stepTick is how far the clock advances before each flow step, so
// journaled records carry distinct timestamps.
const stepTick = time.Second

// world wires one scenario execution: a fresh in-memory store, an
// engine and a coordinator sharing the scenario's constructs, and the
// deterministic helpers.
type world struct {
	store *store.Store
	eng   *engine.Network
	coord *synchro.Coordinator
	clock *testutil.ManualClock
	probe *stabilize.Analyzer

	// patterns holds what the most recent stabilize step detected,
	// per construct, for the pattern_kinds assertion.
	patterns map[string][]reality.Pattern
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database, a manual
// clock, and sequence ids, so repeated runs produce identical traces
// and journals. The returned error covers infrastructure failures
// only; expect and assertion failures ride in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	clock := testutil.NewManualClock(scenarioEpoch)

	st, err := store.Open(":memory:", store.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engCfg := engine.DefaultConfig()
	syncCfg := synchro.DefaultConfig()

	eng := engine.New(engCfg, engine.Deps{
		Store:  st,
		Sink:   sink.Nop{},
		Clock:  clock,
		IDs:    testutil.NewSequenceIDs("stb"),
		Logger: logger,
	})
	defer eng.Close()

	coord := synchro.New(syncCfg,
		synchro.WithClock(clock),
		synchro.WithIDs(testutil.NewSequenceIDs("op")),
		synchro.WithJournal(st),
		synchro.WithLogger(logger),
	)
	defer coord.Close()

	w := &world{
		store: st,
		eng:   eng,
		coord: coord,
		clock: clock,
		// The probe re-runs analysis outside the engine so assertions
		// can see detected patterns; its id sequence is separate to
		// keep engine-minted ids stable.
		probe:    stabilize.NewAnalyzer(engCfg.Stabilize, clock, testutil.NewSequenceIDs("probe")),
		patterns: make(map[string][]reality.Pattern),
	}

	ctx := context.Background()
	result := NewResult()

	// Build the network. The same construct pointer goes to both the
	// engine and the coordinator, so stabilization and synchronization
	// act on shared state, as they do in the CLI.
	for i, spec := range scenario.Constructs {
		c := spec.toConstruct()
		for _, node := range c.Nodes {
			node.LastActivity = clock.Now()
		}
		if _, err := eng.RegisterReality(c); err != nil {
			return nil, fmt.Errorf("constructs[%d]: %w", i, err)
		}
		if err := coord.Track(c); err != nil {
			return nil, fmt.Errorf("constructs[%d]: %w", i, err)
		}
	}

	for i, step := range scenario.Flow {
		clock.Advance(stepTick)
		if err := w.executeStep(ctx, i, step, result); err != nil {
			return nil, err
		}
	}

	// Closing drift sweep: journal whatever divergence the flow left
	// behind, so drift_count and the report see it.
	clock.Advance(stepTick)
	events, err := coord.DetectDrift(ctx)
	if err != nil {
		return nil, fmt.Errorf("drift sweep: %w", err)
	}
	result.AddTrace(TraceEvent{Kind: "drift_sweep", Success: true, Events: len(events)})

	actx := &AssertionContext{
		Ctx:      ctx,
		Store:    st,
		Network:  eng,
		Patterns: w.patterns,
	}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	snapshot, err := buildSnapshot(ctx, scenario, result, w)
	if err != nil {
		return nil, fmt.Errorf("building report snapshot: %w", err)
	}
	result.Snapshot = snapshot

	return result, nil
}

// executeStep dispatches one flow step and validates its expect clause.
// Engine errors matched by expect.Error count as the expected outcome;
// any other engine error fails the scenario via Result.Errors. The flow
// keeps running either way so traces stay comparable.
func (w *world) executeStep(ctx context.Context, index int, step FlowStep, result *Result) error {
	switch {
	case step.Stabilize != "":
		return w.stabilizeStep(ctx, index, step, result)
	case step.Synchronize != nil:
		return w.synchronizeStep(ctx, index, step, result)
	case step.Coordinate:
		return w.coordinateStep(ctx, index, step, result)
	}
	return fmt.Errorf("flow[%d]: empty step", index)
}

func (w *world) stabilizeStep(ctx context.Context, index int, step FlowStep, result *Result) error {
	id := step.Stabilize

	// Record what the analyzer sees before remediation runs.
	if c, err := w.eng.Reality(id); err == nil {
		w.patterns[id] = w.probe.Analyze(c).Patterns
	}

	res, err := w.eng.StabilizeReality(ctx, id)
	if err != nil {
		result.AddTrace(TraceEvent{Kind: "stabilize", Construct: id, Error: errorCode(err)})
		checkExpectedError(index, step.Expect, err, result)
		return nil
	}

	ev := TraceEvent{
		Kind:      "stabilize",
		Construct: id,
		Success:   true,
		Valid:     res.Validation.Valid,
		Stability: res.FinalStability,
		Steps:     res.StepsExecuted,
	}
	result.AddTrace(ev)

	if step.Expect == nil {
		return nil
	}
	if step.Expect.Error != "" {
		result.AddError(fmt.Sprintf("flow[%d]: expected error %s, step succeeded", index, step.Expect.Error))
	}
	if step.Expect.Valid != nil && res.Validation.Valid != *step.Expect.Valid {
		result.AddError(fmt.Sprintf("flow[%d]: expected valid=%t, got %t", index, *step.Expect.Valid, res.Validation.Valid))
	}
	if step.Expect.MinStability != nil && res.FinalStability < *step.Expect.MinStability {
		result.AddError(fmt.Sprintf("flow[%d]: expected final stability >= %g, got %g", index, *step.Expect.MinStability, res.FinalStability))
	}
	if step.Expect.Steps != nil && res.StepsExecuted != *step.Expect.Steps {
		result.AddError(fmt.Sprintf("flow[%d]: expected %d executed steps, got %d", index, *step.Expect.Steps, res.StepsExecuted))
	}
	return nil
}

func (w *world) synchronizeStep(ctx context.Context, index int, step FlowStep, result *Result) error {
	sync := step.Synchronize
	kind := reality.OpStateSync
	if sync.Kind != "" {
		kind = reality.OperationKind(sync.Kind)
	}

	now := w.clock.Now()
	op := reality.Operation{
		ID:       fmt.Sprintf("flow-%03d", index+1),
		Kind:     kind,
		SourceID: sync.Source,
		TargetID: sync.Target,
		Priority: reality.PriorityMedium,
		Payload: reality.Object{
			"mode": reality.String("scenario"),
		},
		CreatedAt: now,
		Deadline:  now.Add(time.Minute),
	}

	res, err := w.coord.CoordinateOperations(ctx, []reality.Operation{op})
	if err != nil {
		result.AddTrace(TraceEvent{Kind: "synchronize", Source: sync.Source, Target: sync.Target, Error: errorCode(err)})
		checkExpectedError(index, step.Expect, err, result)
		return nil
	}

	ev := TraceEvent{
		Kind:       "synchronize",
		Source:     sync.Source,
		Target:     sync.Target,
		Operations: res.Coordinated,
	}
	if len(res.Outcomes) > 0 {
		out := res.Outcomes[0]
		ev.Success = out.Success
		ev.Drift = out.Drift
		if !out.Success {
			ev.Error = out.Error
		}
	}
	result.AddTrace(ev)

	if step.Expect == nil {
		return nil
	}
	if step.Expect.Error != "" {
		result.AddError(fmt.Sprintf("flow[%d]: expected error %s, step succeeded", index, step.Expect.Error))
	}
	if step.Expect.Success != nil && ev.Success != *step.Expect.Success {
		result.AddError(fmt.Sprintf("flow[%d]: expected success=%t, got %t", index, *step.Expect.Success, ev.Success))
	}
	return nil
}

func (w *world) coordinateStep(ctx context.Context, index int, step FlowStep, result *Result) error {
	round, err := w.coord.SynchronizeRealities(ctx)
	if err != nil {
		result.AddTrace(TraceEvent{Kind: "coordinate", Synchronized: round.Synchronized, Error: errorCode(err)})
		checkExpectedError(index, step.Expect, err, result)
		return nil
	}

	result.AddTrace(TraceEvent{
		Kind:         "coordinate",
		Success:      true,
		Synchronized: round.Synchronized,
		Operations:   round.Coordination.Coordinated,
	})

	if step.Expect == nil {
		return nil
	}
	if step.Expect.Error != "" {
		result.AddError(fmt.Sprintf("flow[%d]: expected error %s, step succeeded", index, step.Expect.Error))
	}
	if step.Expect.Synchronized != nil && round.Synchronized != *step.Expect.Synchronized {
		result.AddError(fmt.Sprintf("flow[%d]: expected %d synchronized constructs, got %d", index, *step.Expect.Synchronized, round.Synchronized))
	}
	return nil
}

// checkExpectedError resolves a failed step against its expect clause:
// a matching code is the expected outcome, anything else is a failure.
func checkExpectedError(index int, expect *ExpectClause, err error, result *Result) {
	if expect != nil && expect.Error != "" {
		if reality.HasCode(err, reality.ErrorCode(expect.Error)) {
			return
		}
		result.AddError(fmt.Sprintf("flow[%d]: expected error %s, got: %v", index, expect.Error, err))
		return
	}
	result.AddError(fmt.Sprintf("flow[%d]: unexpected error: %v", index, err))
}

// errorCode extracts the taxonomy code for trace display.
func errorCode(err error) string {
	var re *reality.Error
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return err.Error()
}
