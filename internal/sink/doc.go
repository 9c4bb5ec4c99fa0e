// Package sink delivers notable engine and coordinator events to
// operators. Events are fire-and-forget: publishing never fails and
// never blocks the caller beyond the sink's own write.
//
// Three implementations ship with the module: Slog logs events through
// a structured logger, Prometheus records them as metrics on the
// default registry, and Nop discards them (tests). Fanout combines
// sinks.
package sink
