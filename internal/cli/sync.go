package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/starwell/coherence/internal/synchro"
)

// SyncSummary is the sync command's output payload.
type SyncSummary struct {
	Round synchro.RoundResult  `json:"round"`
	Drift []synchro.DriftEvent `json:"drift,omitempty"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <manifest>",
		Short: "Run a full synchronization round",
		Long: `Track the manifest's constructs and synchronize them pairwise.

Generates one state-sync operation per ordered construct pair, executes
them in priority order under per-construct locking, then sweeps for
residual drift. The round fails if any construct misses participation
in a successful operation.

Exit codes:
  0 - Round complete, every construct synchronized
  1 - Round failed (participation shortfall or operation failures)
  2 - Command error (bad manifest, fewer than two constructs)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runSync(opts *RootOptions, manifestPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	w, err := openWorld(opts, manifestPath, newLogger(opts, cmd.ErrOrStderr()))
	if err != nil {
		_ = formatter.Error(taxonomyCode(err), err.Error(), nil)
		return err
	}
	defer w.Close()

	ctx := cmd.Context()
	round, roundErr := w.coord.SynchronizeRealities(ctx)
	drift, err := w.coord.DetectDrift(ctx)
	if err != nil {
		_ = formatter.Error(taxonomyCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "drift detection failed", err)
	}

	summary := SyncSummary{Round: round, Drift: drift}

	if roundErr != nil {
		// The round result still describes what executed; report it
		// alongside the failure.
		_ = formatter.Error(taxonomyCode(roundErr), roundErr.Error(), summary)
		return WrapExitError(ExitFailure, "synchronization round failed", roundErr)
	}

	if formatter.Format == "json" {
		return formatter.Success(summary)
	}
	printRound(formatter, summary)
	return nil
}

func printRound(formatter *OutputFormatter, summary SyncSummary) {
	w := formatter.Writer
	res := summary.Round.Coordination
	fmt.Fprintf(w, "✓ synchronized %d/%d construct(s): %d operation(s), %d failed, strength %.2f, %.1f energy\n",
		summary.Round.Synchronized, summary.Round.Requested,
		res.Coordinated, res.Failed, res.Strength, res.EnergyConsumed)

	if len(summary.Drift) == 0 {
		fmt.Fprintln(w, "  no residual drift")
		return
	}
	for _, d := range summary.Drift {
		fmt.Fprintf(w, "  drift %s↔%s: %s %.3f (leader %s)\n",
			d.ConstructA, d.ConstructB, d.Kind, d.Magnitude, d.Direction)
	}
}
