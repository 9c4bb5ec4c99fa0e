package reality

import "github.com/google/uuid"

// IDGenerator mints identifiers for patterns, plans, steps, operations,
// and drift events. Injected everywhere an id is created so tests can
// substitute a deterministic generator.
type IDGenerator interface {
	NewID() string
}

// UUIDv7Generator mints time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids sort by
// creation time. That keeps log output and persisted history readable
// without a secondary sort key.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewID creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
