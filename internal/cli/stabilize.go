package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/starwell/coherence/internal/stabilize"
)

// StabilizeOptions holds flags for the stabilize command.
type StabilizeOptions struct {
	*RootOptions
	Reality string // stabilize a single construct instead of all
}

// StabilizeSummary is the stabilize command's output payload.
type StabilizeSummary struct {
	Results []stabilize.Result `json:"results"`
}

// NewStabilizeCommand creates the stabilize command.
func NewStabilizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StabilizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stabilize <manifest>",
		Short: "Run the analyze/plan/execute pipeline",
		Long: `Register the manifest's constructs and run remediation against them.

For each construct the engine detects instability patterns, builds an
ordered remediation plan, and executes it, stopping early once
stability clears the healthy threshold. A construct already within the
threshold is left untouched and reported as a no-op.

Degraded outcomes (a failed step, a no-op on a healthy construct) ride
in the per-construct valid flag and warnings; only structural problems
(unknown construct, critical instability with no viable plan) abort the
command.

Examples:
  coherence stabilize ./network.cue
  coherence stabilize ./network.cue --reality alpha
  coherence stabilize ./network.cue --store state.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStabilize(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Reality, "reality", "", "stabilize only this construct id")

	return cmd
}

func runStabilize(opts *StabilizeOptions, manifestPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	w, err := openWorld(opts.RootOptions, manifestPath, newLogger(opts.RootOptions, cmd.ErrOrStderr()))
	if err != nil {
		_ = formatter.Error(taxonomyCode(err), err.Error(), nil)
		return err
	}
	defer w.Close()

	targets := w.eng.Realities()
	if opts.Reality != "" {
		targets = []string{opts.Reality}
	}

	summary := StabilizeSummary{Results: make([]stabilize.Result, 0, len(targets))}
	for _, id := range targets {
		formatter.VerboseLog("stabilizing %s", id)
		res, err := w.eng.StabilizeReality(cmd.Context(), id)
		if err != nil {
			_ = formatter.Error(taxonomyCode(err), err.Error(), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("stabilizing %s", id), err)
		}
		summary.Results = append(summary.Results, res)
	}

	if formatter.Format == "json" {
		return formatter.Success(summary)
	}
	for _, res := range summary.Results {
		printStabilizeResult(formatter, res)
	}
	return nil
}

func printStabilizeResult(formatter *OutputFormatter, res stabilize.Result) {
	w := formatter.Writer
	mark := "✓"
	if !res.Validation.Valid {
		mark = "•"
	}
	fmt.Fprintf(w, "%s %s: stability %.3f → %.3f (%+.3f), %d/%d step(s) succeeded, %.1f energy\n",
		mark, res.ConstructID,
		res.OriginalStability, res.FinalStability, res.StabilityImprovement,
		res.StepsSucceeded, res.StepsExecuted, res.EnergyConsumed)
	for _, warn := range res.Validation.Warnings {
		fmt.Fprintf(w, "    warning: %s\n", warn)
	}
	for _, msg := range res.Validation.Errors {
		fmt.Fprintf(w, "    error: %s\n", msg)
	}
	if formatter.Verbose {
		for _, step := range res.StepResults {
			fmt.Fprintf(w, "    step %s (%s): success=%t stability=%.3f\n",
				step.StepID, step.Algorithm, step.Success, step.ResultingStability)
		}
	}
}
