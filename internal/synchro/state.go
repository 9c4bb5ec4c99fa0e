package synchro

// State is the coordinator's lifecycle phase.
type State string

const (
	// StateInitializing is the phase before Initialize completes.
	StateInitializing State = "initializing"
	// StateSynchronizing means a coordination round is pending or the
	// coordinator has not yet confirmed full convergence.
	StateSynchronizing State = "synchronizing"
	// StateSynchronized means the last full round covered every
	// tracked construct.
	StateSynchronized State = "synchronized"
	// StateDesynchronizing means critical drift was detected and the
	// tracked set is diverging.
	StateDesynchronizing State = "desynchronizing"
	// StateFailed means the last round could not cover the tracked
	// set.
	StateFailed State = "failed"
)
