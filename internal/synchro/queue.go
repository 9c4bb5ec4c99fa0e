package synchro

import (
	"sort"
	"sync"
	"time"

	"github.com/starwell/coherence/internal/reality"
)

// opLess defines execution order: priority rank first (critical before
// high before medium before low), then CreatedAt, then ID. The two
// tie-breakers keep ordering FIFO and fully deterministic within a
// priority class.
func opLess(a, b reality.Operation) bool {
	ar, br := a.Priority.Rank(), b.Priority.Rank()
	if ar != br {
		return ar < br
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Queue is a thread-safe priority queue of synchronization operations.
//
// The queue is unbounded: a coordination round may merge arbitrarily
// many generated operations without blocking. Operations are kept in
// execution order so Drain and TryDequeue are O(1) reads off the
// front.
//
// Thread-safety covers external enqueuing while a round drains. In
// practice most usage is one round at a time.
type Queue struct {
	mu     sync.Mutex
	ops    []reality.Operation
	ids    map[string]struct{}
	closed bool
}

// NewQueue creates an empty operation queue.
func NewQueue() *Queue {
	return &Queue{
		ops: make([]reality.Operation, 0, 16),
		ids: make(map[string]struct{}),
	}
}

// Enqueue validates op against now and inserts it in execution order.
// Validation failures (blank ids, self-sync, empty payload, expired
// deadline) are returned as typed errors. An operation whose ID is
// already queued merges silently: the queued copy wins and no error is
// returned.
func (q *Queue) Enqueue(op reality.Operation, now time.Time) error {
	if err := op.Validate(now); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return reality.NewValidationError("operation queue is closed", "")
	}
	if _, dup := q.ids[op.ID]; dup {
		return nil
	}
	q.ids[op.ID] = struct{}{}

	idx := sort.Search(len(q.ops), func(i int) bool { return opLess(op, q.ops[i]) })
	q.ops = append(q.ops, reality.Operation{})
	copy(q.ops[idx+1:], q.ops[idx:])
	q.ops[idx] = op
	return nil
}

// TryDequeue removes and returns the front operation without blocking.
// Returns false if the queue is empty.
func (q *Queue) TryDequeue() (reality.Operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) == 0 {
		return reality.Operation{}, false
	}

	op := q.ops[0]

	// Nil out the slot so the payload's references are collectable
	// while the backing array lives on.
	q.ops[0] = reality.Operation{}
	if len(q.ops) == 1 {
		q.ops = q.ops[:0]
	} else {
		q.ops = q.ops[1:]
	}
	delete(q.ids, op.ID)
	return op, true
}

// Drain removes and returns every queued operation in execution order.
func (q *Queue) Drain() []reality.Operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]reality.Operation, len(q.ops))
	copy(out, q.ops)
	q.ops = q.ops[:0]
	clear(q.ids)
	return out
}

// Len returns the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Close rejects all further enqueues. Queued operations remain
// drainable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
