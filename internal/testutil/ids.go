package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs mints deterministic ids of the form "prefix-000001".
//
// Substituted for the production UUIDv7 generator wherever a test needs
// stable ids, including golden snapshot comparison: the same scenario with
// the same SequenceIDs produces byte-identical output.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDs creates a generator with the given prefix.
// An empty prefix defaults to "id".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &SequenceIDs{prefix: prefix}
}

// NewID returns the next id in the sequence, starting at 000001.
func (g *SequenceIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%06d", g.prefix, g.n)
}

// Reset restarts the sequence so a scenario can be replayed with the
// same ids.
func (g *SequenceIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
