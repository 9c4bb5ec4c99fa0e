// Package engine hosts the reality network engine: a registry of
// constructs with the analyze/plan/execute stabilization pipeline, the
// adaptation controller, and a background stability monitor wired over
// it.
//
// Collaborators are constructor-injected through Deps. Nil pipeline
// deps fall back to defaults built from the engine config, so
// engine.New(engine.DefaultConfig(), engine.Deps{}) is a working engine
// with persistence and event publication disabled.
package engine
