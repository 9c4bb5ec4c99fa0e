package synchro

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/starwell/coherence/internal/reality"
	"github.com/starwell/coherence/internal/sink"
)

// Journal persists coordination outcomes and drift events for audit
// and reporting. Implementations must be safe for concurrent use. A
// nil Journal disables persistence; journal failures are logged and
// never fail the round.
type Journal interface {
	RecordOperation(ctx context.Context, out OperationOutcome) error
	RecordDrift(ctx context.Context, ev DriftEvent) error
}

// executedOp captures the state needed to reverse one successful
// operation.
type executedOp struct {
	op           reality.Operation
	sourceBefore reality.Health
	targetBefore reality.Health
	sourceSync   time.Time
	targetSync   time.Time
	at           time.Time
}

// constructSnapshot is a point-in-time copy of a tracked construct,
// taken under its lock.
type constructSnapshot struct {
	id       string
	kind     reality.ConstructKind
	health   reality.Health
	lastSync time.Time
}

// Coordinator synchronizes health across tracked constructs.
//
// Thread-safety: exported methods may be called from any goroutine.
// Registry state is guarded by one mutex; construct health is guarded
// by per-construct locks, so operations on disjoint pairs proceed
// concurrently while operations sharing an endpoint serialize.
//
// The coordinator keeps the construct pointers handed to Track and
// becomes their owner for health mutation: callers must not mutate a
// tracked construct except through coordinator (or engine) calls.
type Coordinator struct {
	cfg     Config
	log     *slog.Logger
	clock   reality.Clock
	ids     reality.IDGenerator
	journal Journal
	events  sink.Sink

	// roundMu serializes coordination rounds so concurrent callers
	// cannot steal each other's queued operations.
	roundMu sync.Mutex

	mu        sync.Mutex
	state     State
	realities map[string]*reality.Construct
	locks     map[string]*sync.Mutex
	matrix    Matrix
	queue     *Queue
	history   []executedOp
	outcomes  []OperationOutcome
	drifts    []DriftEvent
	started   bool
	closed    bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option adjusts a Coordinator at construction time.
type Option func(*Coordinator)

// WithClock substitutes the time source.
func WithClock(clock reality.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithIDs substitutes the ID generator.
func WithIDs(ids reality.IDGenerator) Option {
	return func(c *Coordinator) { c.ids = ids }
}

// WithJournal enables persistence of outcomes and drift events.
func WithJournal(j Journal) Option {
	return func(c *Coordinator) { c.journal = j }
}

// WithSink routes synchronization issues to s.
func WithSink(s sink.Sink) Option {
	return func(c *Coordinator) { c.events = s }
}

// WithLogger substitutes the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// New creates a coordinator in the initializing state.
func New(cfg Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:       cfg,
		log:       slog.Default(),
		clock:     reality.SystemClock{},
		ids:       reality.UUIDv7Generator{},
		events:    sink.Nop{},
		state:     StateInitializing,
		realities: make(map[string]*reality.Construct),
		locks:     make(map[string]*sync.Mutex),
		queue:     NewQueue(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.matrix = BuildMatrix(nil, cfg.BaselineStrength, 0, c.clock.Now())
	return c
}

// Track registers a construct and rebuilds the coordination matrix.
func (c *Coordinator) Track(construct *reality.Construct) error {
	if construct == nil {
		return reality.NewValidationError("construct must not be nil", "")
	}
	if err := construct.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return reality.NewValidationError("coordinator is closed", construct.ID)
	}
	if _, dup := c.realities[construct.ID]; dup {
		return reality.NewValidationError("construct already tracked", construct.ID)
	}
	c.realities[construct.ID] = construct
	c.locks[construct.ID] = &sync.Mutex{}
	c.rebuildMatrixLocked()
	c.log.Debug("construct tracked", "construct", construct.ID, "tracked", len(c.realities))
	return nil
}

// Untrack removes a construct from coordination. In-flight operations
// that already resolved the construct finish against it.
func (c *Coordinator) Untrack(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.realities[id]; !ok {
		return reality.NewNotFound(id)
	}
	delete(c.realities, id)
	delete(c.locks, id)
	c.rebuildMatrixLocked()
	c.log.Debug("construct untracked", "construct", id, "tracked", len(c.realities))
	return nil
}

// Tracked returns the sorted IDs of all tracked constructs.
func (c *Coordinator) Tracked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trackedLocked()
}

func (c *Coordinator) trackedLocked() []string {
	ids := make([]string, 0, len(c.realities))
	for id := range c.realities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// State returns the coordinator's lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Matrix returns a copy of the current coordination matrix.
func (c *Coordinator) Matrix() Matrix {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.matrix.Clone()
}

// Pending returns the number of queued operations.
func (c *Coordinator) Pending() int {
	return c.queue.Len()
}

func (c *Coordinator) rebuildMatrixLocked() {
	c.matrix = BuildMatrix(c.trackedLocked(), c.cfg.BaselineStrength, c.matrix.Version+1, c.clock.Now())
}

func (c *Coordinator) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.log.Info("coordinator state changed", "from", string(c.state), "to", string(s))
	c.state = s
}

// snapshotConstructs copies every tracked construct's reportable state
// under its lock, sorted by ID. Snapshots are consistent per construct
// but not across the set.
func (c *Coordinator) snapshotConstructs() []constructSnapshot {
	c.mu.Lock()
	ids := c.trackedLocked()
	ptrs := make([]*reality.Construct, len(ids))
	lks := make([]*sync.Mutex, len(ids))
	for i, id := range ids {
		ptrs[i] = c.realities[id]
		lks[i] = c.locks[id]
	}
	c.mu.Unlock()

	out := make([]constructSnapshot, len(ids))
	for i, id := range ids {
		lks[i].Lock()
		out[i] = constructSnapshot{
			id:       id,
			kind:     ptrs[i].Kind,
			health:   ptrs[i].Health,
			lastSync: ptrs[i].LastSynchronization,
		}
		lks[i].Unlock()
	}
	return out
}

// Initialize moves the coordinator out of initializing, rebuilds the
// matrix, and starts the background health and drift tickers. The
// tickers stop when ctx is cancelled or Close is called.
func (c *Coordinator) Initialize(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		cancel()
		return reality.NewValidationError("coordinator is closed", "")
	case c.started:
		c.mu.Unlock()
		cancel()
		return reality.NewValidationError("coordinator already initialized", "")
	}
	c.started = true
	c.cancel = cancel
	c.rebuildMatrixLocked()
	c.setStateLocked(StateSynchronizing)
	c.mu.Unlock()

	c.wg.Add(2)
	go c.healthLoop(runCtx)
	go c.driftLoop(runCtx)

	c.log.Info("coordinator initialized",
		"health_interval", c.cfg.HealthInterval,
		"drift_interval", c.cfg.DriftInterval,
		"workers", c.cfg.Workers)
	return nil
}

func (c *Coordinator) healthLoop(ctx context.Context) {
	defer c.wg.Done()
	t := time.NewTicker(c.cfg.HealthInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.logHealth()
		}
	}
}

// logHealth emits a periodic summary of the tracked set.
func (c *Coordinator) logHealth() {
	snaps := c.snapshotConstructs()
	var sum float64
	for i := range snaps {
		sum += snaps[i].health.Mean()
	}
	avg := 0.0
	if len(snaps) > 0 {
		avg = sum / float64(len(snaps))
	}
	c.log.Info("synchronization health",
		"state", string(c.State()),
		"tracked", len(snaps),
		"avg_health", avg,
		"pending", c.queue.Len())
}

func (c *Coordinator) driftLoop(ctx context.Context) {
	defer c.wg.Done()
	t := time.NewTicker(c.cfg.DriftInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := c.DetectDrift(ctx); err != nil {
				c.log.Error("drift detection failed", "error", err)
			}
		}
	}
}

// DetectDrift measures pairwise drift across the tracked set and
// returns the events above the reporting threshold. Drift past the
// critical bar flips the coordinator to desynchronizing and publishes
// a synchronization issue per affected pair.
func (c *Coordinator) DetectDrift(ctx context.Context) ([]DriftEvent, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, reality.NewValidationError("coordinator is closed", "")
	}
	c.mu.Unlock()

	snaps := c.snapshotConstructs()
	now := c.clock.Now()

	var (
		events   []DriftEvent
		maxMag   float64
		critical bool
	)
	for i := 0; i < len(snaps); i++ {
		for j := i + 1; j < len(snaps); j++ {
			a, b := snaps[i], snaps[j]
			mag := driftMagnitude(a.health, b.health, c.cfg.MaxDrift)
			if mag <= c.cfg.DriftThreshold {
				continue
			}
			ev := DriftEvent{
				ID:         c.ids.NewID(),
				ConstructA: a.id,
				ConstructB: b.id,
				Kind:       dominantDimension(a.health, b.health),
				Magnitude:  mag,
				Direction:  leaderID(a.id, a.health, b.id, b.health),
				DetectedAt: now,
			}
			events = append(events, ev)
			if mag > maxMag {
				maxMag = mag
			}
			if mag > c.cfg.CriticalDrift {
				critical = true
				c.events.Publish(ctx, sink.SyncIssue{
					ConstructA: a.id,
					ConstructB: b.id,
					Kind:       sink.IssueDrift,
					Magnitude:  mag,
					Message:    "critical drift detected",
					At:         now,
				})
			}
			if c.journal != nil {
				if err := c.journal.RecordDrift(ctx, ev); err != nil {
					c.log.Error("journal drift record failed", "error", err, "drift", ev.ID)
				}
			}
		}
	}

	c.mu.Lock()
	c.drifts = append(c.drifts, events...)
	if limit := c.cfg.HistoryLimit; limit > 0 && len(c.drifts) > limit {
		c.drifts = append([]DriftEvent(nil), c.drifts[len(c.drifts)-limit:]...)
	}
	stateChanged := false
	if critical && c.state != StateDesynchronizing {
		c.setStateLocked(StateDesynchronizing)
		stateChanged = true
	}
	c.mu.Unlock()

	if stateChanged {
		c.events.Publish(ctx, sink.SyncIssue{
			Kind:      sink.IssueDesynchronized,
			Magnitude: maxMag,
			Message:   "critical drift detected; coordinator entering desynchronizing state",
			At:        now,
		})
	}
	if len(events) > 0 {
		c.log.Warn("drift detected", "events", len(events), "max_magnitude", maxMag)
	}
	return events, nil
}

// Close stops the background tickers, closes the operation queue, and
// rejects further coordination. Safe to call more than once.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	c.queue.Close()
	c.log.Info("coordinator closed")
	return nil
}
