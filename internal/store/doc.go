// Package store provides SQLite-backed durable storage for the
// stabilization engine and the synchronization coordinator.
//
// It persists four record kinds:
//   - Constructs: current snapshot per registered construct (upserted)
//   - Stabilization results: append-only run log
//   - Sync operations: coordination outcome journal (idempotent by operation id)
//   - Drift events: detected cross-replica drift (idempotent by event id)
//
// # Conventions
//
// Ordering always uses the INTEGER primary key, never timestamps, so
// reads are deterministic regardless of wall time. Timestamps are
// stored as UnixNano INTEGER columns (0 = zero time) and only serve
// window filters. JSON columns are encoded without HTML escaping with
// struct fields in declaration order, so the same state always stores
// the same bytes.
//
// The store implements engine.Store and synchro.Journal. Both treat
// journal-style writes as best effort: a failed write is logged by the
// caller and never fails the run that produced it.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//
// Schema changes run through PRAGMA user_version migrations in
// store.go; schema.sql always creates the newest layout for fresh
// databases.
package store
