package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/starwell/coherence/internal/reality"
	"github.com/starwell/coherence/internal/sink"
	"github.com/starwell/coherence/internal/stabilize"
	"github.com/starwell/coherence/internal/topology"
)

// NetworkHandle summarizes a freshly registered reality network.
type NetworkHandle struct {
	ConstructID  string           `json:"construct_id"`
	Nodes        int              `json:"nodes"`
	Connections  int              `json:"connections"`
	Graph        topology.Metrics `json:"graph"`
	RegisteredAt time.Time        `json:"registered_at"`
}

// Network is the stabilization engine instance.
//
// Thread-safety: exported methods may be called from any goroutine.
// The registry map is guarded by one mutex; construct state is guarded
// by per-construct locks, so stabilization of disjoint constructs
// proceeds concurrently while calls touching the same construct
// serialize. The network owns registered constructs for mutation:
// callers must not modify them directly after RegisterReality.
type Network struct {
	cfg   Config
	log   *slog.Logger
	clock reality.Clock

	analyzer Analyzer
	planner  Planner
	executor Executor
	adapter  Adapter
	monitor  Monitor
	store    Store
	events   sink.Sink

	mu        sync.Mutex
	realities map[string]*reality.Construct
	locks     map[string]*sync.Mutex
	started   bool
	closed    bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a network engine. Nil deps fall back to the default
// pipeline built from cfg; see Deps.
func New(cfg Config, deps Deps) *Network {
	clock := deps.Clock
	if clock == nil {
		clock = reality.SystemClock{}
	}
	ids := deps.IDs
	if ids == nil {
		ids = reality.UUIDv7Generator{}
	}

	n := &Network{
		cfg:       cfg,
		log:       deps.Logger,
		clock:     clock,
		analyzer:  deps.Analyzer,
		planner:   deps.Planner,
		executor:  deps.Executor,
		adapter:   deps.Adapter,
		monitor:   deps.Monitor,
		store:     deps.Store,
		events:    deps.Sink,
		realities: make(map[string]*reality.Construct),
		locks:     make(map[string]*sync.Mutex),
	}
	if n.log == nil {
		n.log = slog.Default()
	}
	if n.events == nil {
		n.events = sink.Nop{}
	}
	if n.analyzer == nil {
		n.analyzer = stabilize.NewAnalyzer(cfg.Stabilize, clock, ids)
	}
	if n.planner == nil {
		n.planner = stabilize.NewPlanner(cfg.Stabilize, clock, ids)
	}
	if n.executor == nil {
		n.executor = stabilize.NewExecutor(cfg.Stabilize, clock)
	}
	if n.adapter == nil {
		n.adapter = stabilize.NewController(cfg.Stabilize, cfg.Topology, clock, ids)
	}
	if n.monitor == nil {
		n.monitor = topology.NewMonitor(cfg.Topology)
	}
	return n
}

// RegisterReality validates the construct, derives its node connection
// graph, and adds it to the registry. The returned handle summarizes
// the derived network. When a store is configured the construct is
// persisted; a failed persist rolls the registration back.
func (n *Network) RegisterReality(c *reality.Construct) (NetworkHandle, error) {
	if c == nil {
		return NetworkHandle{}, reality.NewValidationError("construct must not be nil", "")
	}
	if err := c.Validate(); err != nil {
		return NetworkHandle{}, err
	}

	// Derive the connection graph before the construct becomes visible
	// to other goroutines.
	topology.BuildConnections(c.Nodes, n.cfg.Topology)
	c.ConnMatrix = topology.ConnectionMatrix(c.Nodes)

	n.mu.Lock()
	switch {
	case n.closed:
		n.mu.Unlock()
		return NetworkHandle{}, reality.NewValidationError("engine is closed", c.ID)
	default:
		if _, dup := n.realities[c.ID]; dup {
			n.mu.Unlock()
			return NetworkHandle{}, reality.NewValidationError("construct already registered", c.ID)
		}
	}
	n.realities[c.ID] = c
	n.locks[c.ID] = &sync.Mutex{}
	n.mu.Unlock()

	if n.store != nil {
		if err := n.store.SaveConstruct(context.Background(), c); err != nil {
			n.mu.Lock()
			delete(n.realities, c.ID)
			delete(n.locks, c.ID)
			n.mu.Unlock()
			return NetworkHandle{}, fmt.Errorf("persist construct %s: %w", c.ID, err)
		}
	}

	handle := NetworkHandle{
		ConstructID:  c.ID,
		Nodes:        len(c.Nodes),
		Graph:        topology.Analyze(c.Nodes, n.cfg.Topology),
		RegisteredAt: n.clock.Now(),
	}
	for _, node := range c.Nodes {
		handle.Connections += len(node.Connections)
	}

	n.log.Info("reality registered",
		"construct", c.ID,
		"kind", string(c.Kind),
		"nodes", handle.Nodes,
		"connections", handle.Connections)
	return handle, nil
}

// construct resolves a registered construct and its lock.
func (n *Network) construct(id string) (*reality.Construct, *sync.Mutex, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, nil, reality.NewValidationError("engine is closed", id)
	}
	c := n.realities[id]
	if c == nil {
		return nil, nil, reality.NewNotFound(id)
	}
	return c, n.locks[id], nil
}

// StabilizeReality runs the analyze/plan/execute pipeline against one
// construct.
//
// A construct at or above the healthy-stability bar with no detected
// patterns is left untouched: the result reports Valid=false with an
// explanatory warning and neither health nor LastStabilization moves.
// When overall instability exceeds the critical threshold and no plan
// step fits the energy budget, the call aborts with a typed
// STABILITY_CRITICAL error before any mutation. Analysis risk at or
// above cfg.AlertRisk publishes a stability alert to the sink.
func (n *Network) StabilizeReality(ctx context.Context, id string) (stabilize.Result, error) {
	c, lock, err := n.construct(id)
	if err != nil {
		return stabilize.Result{}, err
	}

	lock.Lock()
	defer lock.Unlock()

	analysis := n.analyzer.Analyze(c)
	if analysis.Risk.AtLeast(n.cfg.AlertRisk) {
		n.events.Publish(ctx, sink.StabilityAlert{
			ConstructID: id,
			Risk:        analysis.Risk,
			Overall:     analysis.Overall,
			Message:     fmt.Sprintf("overall instability %.2f across %d patterns", analysis.Overall, len(analysis.Patterns)),
			At:          analysis.AnalyzedAt,
		})
	}

	if len(analysis.Patterns) == 0 && c.Health.Stability >= n.cfg.HealthyStability {
		res := stabilize.Result{
			ConstructID:       id,
			OriginalStability: c.Health.Stability,
			FinalStability:    c.Health.Stability,
			Validation: stabilize.ValidationReport{
				Warnings: []string{"already within target threshold; no remediation planned"},
			},
			CompletedAt: n.clock.Now(),
		}
		n.persistResult(ctx, res)
		n.log.Debug("stabilization skipped", "construct", id, "stability", c.Health.Stability)
		return res, nil
	}

	plan := n.planner.BuildPlan(id, analysis.Patterns)
	if analysis.Overall > n.cfg.Stabilize.CriticalThreshold && !viable(plan, n.cfg.Stabilize.EnergyBudget) {
		return stabilize.Result{}, reality.NewStabilityCriticalError(id, analysis.Overall)
	}

	res, execErr := n.executor.Execute(ctx, c, plan)
	n.persistResult(ctx, res)
	n.persistConstruct(ctx, c)

	n.log.Info("stabilization finished",
		"construct", id,
		"patterns", len(analysis.Patterns),
		"steps", res.StepsExecuted,
		"improvement", res.StabilityImprovement,
		"valid", res.Validation.Valid)
	return res, execErr
}

// viable reports whether at least one plan step fits the energy budget.
func viable(plan reality.Plan, budget float64) bool {
	for _, s := range plan.Steps {
		if s.EstimatedEnergy <= budget {
			return true
		}
	}
	return false
}

// MonitorStability computes a point-in-time stability snapshot of the
// construct's node network.
func (n *Network) MonitorStability(id string) (reality.StabilityMetrics, error) {
	c, lock, err := n.construct(id)
	if err != nil {
		return reality.StabilityMetrics{}, err
	}

	lock.Lock()
	nodes := make([]*reality.Node, len(c.Nodes))
	for i, node := range c.Nodes {
		nodes[i] = node.Clone()
	}
	lock.Unlock()

	return n.monitor.Snapshot(nodes, n.clock.Now()), nil
}

// AdaptToChanges feeds observed environmental changes to the adaptation
// controller. The construct's node network may be reconfigured as a
// side effect; the updated construct is persisted when a store is
// configured.
func (n *Network) AdaptToChanges(ctx context.Context, id string, changes []reality.Change) (stabilize.AdaptationResult, error) {
	c, lock, err := n.construct(id)
	if err != nil {
		return stabilize.AdaptationResult{}, err
	}

	lock.Lock()
	res, err := n.adapter.Adapt(ctx, c, changes)
	lock.Unlock()
	if err != nil {
		return res, err
	}

	n.persistConstruct(ctx, c)
	n.log.Info("adaptation finished",
		"construct", id,
		"network_impact", res.NetworkImpact,
		"effectiveness", res.AdaptationEffectiveness,
		"resilience", res.NetworkResilience)
	return res, nil
}

// Reality returns a deep copy of a registered construct.
func (n *Network) Reality(id string) (*reality.Construct, error) {
	c, lock, err := n.construct(id)
	if err != nil {
		return nil, err
	}
	lock.Lock()
	defer lock.Unlock()
	return c.Clone(), nil
}

// Realities returns the sorted IDs of all registered constructs.
func (n *Network) Realities() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]string, 0, len(n.realities))
	for id := range n.realities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Run starts the background stability monitor. The monitor stops when
// ctx is cancelled or Close is called. Run returns immediately; it can
// be called at most once.
func (n *Network) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	n.mu.Lock()
	switch {
	case n.closed:
		n.mu.Unlock()
		cancel()
		return reality.NewValidationError("engine is closed", "")
	case n.started:
		n.mu.Unlock()
		cancel()
		return reality.NewValidationError("engine already running", "")
	}
	n.started = true
	n.cancel = cancel
	n.mu.Unlock()

	n.wg.Add(1)
	go n.healthLoop(runCtx)

	n.log.Info("engine running", "health_interval", n.cfg.HealthInterval)
	return nil
}

func (n *Network) healthLoop(ctx context.Context) {
	defer n.wg.Done()
	t := time.NewTicker(n.cfg.HealthInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n.logHealth()
		}
	}
}

// logHealth emits a stability snapshot per construct. Failures are
// logged and never stop the ticker.
func (n *Network) logHealth() {
	for _, id := range n.Realities() {
		m, err := n.MonitorStability(id)
		if err != nil {
			n.log.Error("stability check failed", "error", err, "construct", id)
			continue
		}
		n.log.Info("stability snapshot",
			"construct", id,
			"avg_stability", m.AvgStability,
			"active", m.ActiveNodes,
			"total", m.TotalNodes,
			"uptime", m.Uptime)
	}
}

// Close stops the background monitor and rejects further calls. Safe
// to call more than once.
func (n *Network) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	cancel := n.cancel
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	n.wg.Wait()
	n.log.Info("engine closed")
	return nil
}

func (n *Network) persistResult(ctx context.Context, res stabilize.Result) {
	if n.store == nil {
		return
	}
	if err := n.store.SaveResult(ctx, res); err != nil {
		n.log.Error("persist stabilization result failed", "error", err, "construct", res.ConstructID)
	}
}

func (n *Network) persistConstruct(ctx context.Context, c *reality.Construct) {
	if n.store == nil {
		return
	}
	if err := n.store.SaveConstruct(ctx, c); err != nil {
		n.log.Error("persist construct failed", "error", err, "construct", c.ID)
	}
}
