package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start, clock.Now(), "reads never advance the clock")

	clock.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), clock.Now())

	clock.Set(start)
	assert.Equal(t, start, clock.Now())
}

func TestSequenceIDs(t *testing.T) {
	ids := NewSequenceIDs("op")

	assert.Equal(t, "op-000001", ids.NewID())
	assert.Equal(t, "op-000002", ids.NewID())

	ids.Reset()
	assert.Equal(t, "op-000001", ids.NewID(), "reset replays the sequence")

	assert.Equal(t, "id-000001", NewSequenceIDs("").NewID())
}
