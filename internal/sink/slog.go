package sink

import (
	"context"
	"log/slog"
)

// Slog logs events through a structured logger.
type Slog struct {
	log *slog.Logger
}

// NewSlog returns a sink backed by log. A nil log uses slog.Default().
func NewSlog(log *slog.Logger) *Slog {
	if log == nil {
		log = slog.Default()
	}
	return &Slog{log: log}
}

// Publish implements Sink.
func (s *Slog) Publish(_ context.Context, ev Event) {
	switch e := ev.(type) {
	case StabilityAlert:
		s.log.Warn("stability alert",
			"construct", e.ConstructID,
			"risk", string(e.Risk),
			"overall", e.Overall,
			"message", e.Message)
	case SyncIssue:
		s.log.Warn("synchronization issue",
			"construct_a", e.ConstructA,
			"construct_b", e.ConstructB,
			"kind", e.Kind,
			"magnitude", e.Magnitude,
			"message", e.Message)
	default:
		s.log.Info("event", "kind", ev.EventKind())
	}
}
