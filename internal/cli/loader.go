package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starwell/coherence/internal/engine"
	"github.com/starwell/coherence/internal/manifest"
	"github.com/starwell/coherence/internal/reality"
	"github.com/starwell/coherence/internal/sink"
	"github.com/starwell/coherence/internal/store"
	"github.com/starwell/coherence/internal/synchro"
)

// world wires one command invocation: the manifest's constructs
// registered with a stabilization engine and a synchronization
// coordinator, both journaling to the configured store. The same
// construct pointers go to the engine and the coordinator, so
// remediation and synchronization act on shared state.
type world struct {
	store      *store.Store
	eng        *engine.Network
	coord      *synchro.Coordinator
	constructs []*reality.Construct
}

// loadManifest compiles a manifest file or directory, mapping compile
// errors to command-level exit errors.
func loadManifest(path string) ([]*reality.Construct, error) {
	constructs, err := manifest.Load(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "manifest compilation failed", err)
	}
	if len(constructs) == 0 {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("no constructs declared in %s", path))
	}
	return constructs, nil
}

// eventSink builds the event sink for one invocation: structured logs
// always, fanned out to Prometheus metrics when --metrics is set.
func eventSink(opts *RootOptions, logger *slog.Logger) sink.Sink {
	logs := sink.NewSlog(logger)
	if !opts.Metrics {
		return logs
	}
	return sink.Fanout{logs, sink.NewPrometheus()}
}

// openWorld loads the manifest and builds the engine and coordinator
// around its constructs. The caller must Close the returned world.
func openWorld(opts *RootOptions, manifestPath string, logger *slog.Logger) (*world, error) {
	constructs, err := loadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(opts.Store)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("opening store %s", opts.Store), err)
	}

	events := eventSink(opts, logger)
	eng := engine.New(engine.DefaultConfig(), engine.Deps{
		Store:  st,
		Sink:   events,
		Logger: logger,
	})
	coord := synchro.New(synchro.DefaultConfig(),
		synchro.WithJournal(st),
		synchro.WithSink(events),
		synchro.WithLogger(logger),
	)

	w := &world{store: st, eng: eng, coord: coord, constructs: constructs}

	// Manifest nodes carry no activity history; stamp them so a fresh
	// network monitors as fully active.
	now := time.Now()
	for _, c := range constructs {
		for _, node := range c.Nodes {
			node.LastActivity = now
		}
		if _, err := eng.RegisterReality(c); err != nil {
			w.Close()
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("registering construct %s", c.ID), err)
		}
		if err := coord.Track(c); err != nil {
			w.Close()
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("tracking construct %s", c.ID), err)
		}
	}
	return w, nil
}

// Close releases the world's engine, coordinator, and store.
func (w *world) Close() error {
	var errs []error
	if w.coord != nil {
		errs = append(errs, w.coord.Close())
	}
	if w.eng != nil {
		errs = append(errs, w.eng.Close())
	}
	if w.store != nil {
		errs = append(errs, w.store.Close())
	}
	return errors.Join(errs...)
}
